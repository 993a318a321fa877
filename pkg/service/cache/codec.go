/*
 * @Description: 缓存记录编解码，JSON + zstd
 * @Author: 安知鱼
 * @Date: 2025-10-30 09:40:13
 * @LastEditTime: 2025-11-13 16:48:02
 * @LastEditors: 安知鱼
 */
package cache

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
)

var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("zstd encoder init: " + err.Error())
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("zstd decoder init: " + err.Error())
	}
}

// Encode 把记录序列化为压缩后的字节
func Encode(record *model.CacheRecord) ([]byte, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal cache record: %w", err)
	}
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

// Decode 解压并反序列化，任何失败都包装为 ErrCorruptRecord
func Decode(data []byte) (*model.CacheRecord, error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrCorruptRecord, err)
	}
	var record model.CacheRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %v", ErrCorruptRecord, err)
	}
	return &record, nil
}
