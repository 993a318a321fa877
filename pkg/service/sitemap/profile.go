/*
 * @Description: 各目录类型的生成参数
 * @Author: 安知鱼
 * @Date: 2025-10-29 14:20:37
 * @LastEditTime: 2025-11-14 14:37:10
 * @LastEditors: 安知鱼
 */
package sitemap

import (
	"time"

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
)

// DomainProfile 一个目录类型的缓存时效、分块上限、抓取参数和默认权重
type DomainProfile struct {
	Domain      model.Domain
	MaxAge      time.Duration
	MaxEntries  int
	PageSize    int
	MaxPages    int
	Concurrency int
	Priority    float64
	ChangeFreq  model.ChangeFrequency
}

// Profiles 按目录类型索引
type Profiles map[model.Domain]DomainProfile

// DefaultProfiles 返回默认配置：高频变动的商品目录 6 小时过期，低频目录 24 小时
func DefaultProfiles() Profiles {
	return Profiles{
		model.DomainProducts: {
			Domain:      model.DomainProducts,
			MaxAge:      6 * time.Hour,
			MaxEntries:  10000,
			PageSize:    100,
			MaxPages:    500,
			Concurrency: 10,
			Priority:    0.8,
			ChangeFreq:  model.ChangeFreqDaily,
		},
		model.DomainCompanies: {
			Domain:      model.DomainCompanies,
			MaxAge:      12 * time.Hour,
			MaxEntries:  20000,
			PageSize:    100,
			MaxPages:    200,
			Concurrency: 5,
			Priority:    0.7,
			ChangeFreq:  model.ChangeFreqWeekly,
		},
		model.DomainCategories: {
			Domain:      model.DomainCategories,
			MaxAge:      24 * time.Hour,
			MaxEntries:  50000,
			PageSize:    100,
			MaxPages:    100,
			Concurrency: 5,
			Priority:    0.6,
			ChangeFreq:  model.ChangeFreqWeekly,
		},
		model.DomainBlogs: {
			Domain:      model.DomainBlogs,
			MaxAge:      24 * time.Hour,
			MaxEntries:  50000,
			PageSize:    100,
			MaxPages:    100,
			Concurrency: 5,
			Priority:    0.6,
			ChangeFreq:  model.ChangeFreqMonthly,
		},
	}
}

// Get 返回目录类型的配置，未知类型回落到保守的默认值
func (p Profiles) Get(domain model.Domain) DomainProfile {
	if profile, ok := p[domain]; ok {
		return profile
	}
	return DomainProfile{
		Domain:      domain,
		MaxAge:      24 * time.Hour,
		MaxEntries:  DefaultMaxEntries,
		PageSize:    100,
		MaxPages:    100,
		Concurrency: 5,
		Priority:    0.5,
		ChangeFreq:  model.ChangeFreqWeekly,
	}
}
