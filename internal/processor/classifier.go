package processor

import "strings"

const CategoryGeneral = "general"

// CategoryRule 一个分类及其关键词，关键词按子串匹配
type CategoryRule struct {
	Category string
	Keywords []string
}

// DefaultRules 返回默认分类表。顺序即优先级：politics 先于 economy，依此类推。
// 关键词需与前端保持一致，不要随意调整
func DefaultRules() []CategoryRule {
	return []CategoryRule{
		{Category: "politics", Keywords: []string{"parliament", "government", "election", "party", "minister", "president", "policy"}},
		{Category: "economy", Keywords: []string{"economy", "economic", "inflation", "currency", "budget", "finance", "bank"}},
		{Category: "business", Keywords: []string{"business", "company", "entrepreneur", "startup", "market", "industry"}},
		{Category: "sports", Keywords: []string{"sport", "football", "soccer", "cricket", "rugby", "warriors", "afcon"}},
		{Category: "harare", Keywords: []string{"harare", "capital", "city council", "mayor", "cbd"}},
	}
}

// Classifier 按声明顺序做首个命中的关键词分类，构造后不可变
type Classifier struct {
	rules []CategoryRule
}

func NewClassifier(rules []CategoryRule) *Classifier {
	cp := make([]CategoryRule, len(rules))
	for i, r := range rules {
		kws := make([]string, len(r.Keywords))
		for j, k := range r.Keywords {
			kws[j] = strings.ToLower(k)
		}
		cp[i] = CategoryRule{Category: r.Category, Keywords: kws}
	}
	return &Classifier{rules: cp}
}

var defaultClassifier = NewClassifier(DefaultRules())

// DetermineCategory 使用默认分类表
func DetermineCategory(text string) string {
	return defaultClassifier.Categorize(text)
}

// Categorize 返回第一个有关键词命中的分类，全部未命中时返回 general
func (c *Classifier) Categorize(text string) string {
	text = strings.ToLower(text)
	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if strings.Contains(text, k) {
				return r.Category
			}
		}
	}
	return CategoryGeneral
}

// MatchKeywords 返回文本中出现的全部关键词（跨分类、按声明顺序、去重）
func (c *Classifier) MatchKeywords(text string) []string {
	text = strings.ToLower(text)
	out := []string{}
	seen := make(map[string]struct{})
	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if _, ok := seen[k]; ok {
				continue
			}
			if strings.Contains(text, k) {
				seen[k] = struct{}{}
				out = append(out, k)
			}
		}
	}
	return out
}
