package plan

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/qs3c/qrcode_go_server/config"
)

// Period 计费周期
type Period string

const (
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
	PeriodCode  Period = "code"
)

const day = 24 * time.Hour

var (
	ErrEmptyCatalog   = errors.New("plan catalog has no tiers")
	ErrDuplicateTier  = errors.New("duplicate tier in plan catalog")
	ErrUnknownTier    = errors.New("unknown tier")
	ErrInvalidPeriod  = errors.New("invalid billing period")
	ErrLowestTierPaid = errors.New("lowest tier must not carry a price")
)

// Tier 套餐等级
type Tier struct {
	Name         string
	Limit        int // < 0 表示不限
	MonthlyPrice int64
	YearlyPrice  int64
}

// Unlimited 是否不限数量
func (t Tier) Unlimited() bool {
	return t.Limit < 0
}

// Catalog 不可变的套餐目录
type Catalog struct {
	tiers     []Tier
	index     map[string]int
	promo     map[string]string
	currency  string
	monthTerm time.Duration
	yearTerm  time.Duration
	promoTerm time.Duration
	retention time.Duration
	idLength  int
}

// NewCatalog 校验配置并构建套餐目录
func NewCatalog(cfg config.PlansConfig) (*Catalog, error) {
	if len(cfg.Tiers) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		index:     make(map[string]int, len(cfg.Tiers)),
		promo:     make(map[string]string, len(cfg.PromoCodes)),
		currency:  cfg.Currency,
		monthTerm: time.Duration(cfg.MonthTermDays) * day,
		yearTerm:  time.Duration(cfg.YearTermDays) * day,
		promoTerm: time.Duration(cfg.PromoTermDays) * day,
		retention: time.Duration(cfg.DeleteRetentionDays) * day,
		idLength:  cfg.PublicIDLength,
	}

	for i, tc := range cfg.Tiers {
		if _, dup := c.index[tc.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTier, tc.Name)
		}
		if i == 0 && tc.MonthlyPrice > 0 {
			return nil, ErrLowestTierPaid
		}
		yearly := tc.YearlyPrice
		if yearly == 0 && tc.MonthlyPrice > 0 {
			yearly = yearlyPrice(tc.MonthlyPrice, tc.YearlyDiscountPercent)
		}
		c.index[tc.Name] = i
		c.tiers = append(c.tiers, Tier{
			Name:         tc.Name,
			Limit:        tc.Limit,
			MonthlyPrice: tc.MonthlyPrice,
			YearlyPrice:  yearly,
		})
	}

	for _, pc := range cfg.PromoCodes {
		if _, ok := c.index[pc.Tier]; !ok {
			return nil, fmt.Errorf("%w: promo code %s -> %s", ErrUnknownTier, pc.Code, pc.Tier)
		}
		c.promo[pc.Code] = pc.Tier
	}

	return c, nil
}

// yearlyPrice 十二个月价格按折扣取整
func yearlyPrice(monthly int64, discountPercent int) int64 {
	full := float64(monthly*12) * float64(100-discountPercent) / 100
	return int64(math.Round(full))
}

// Lowest 最低等级（免费）
func (c *Catalog) Lowest() string {
	return c.tiers[0].Name
}

// Tiers 按从低到高返回所有等级
func (c *Catalog) Tiers() []Tier {
	out := make([]Tier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// Known 是否为已配置的等级
func (c *Catalog) Known(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Tier 查询等级
func (c *Catalog) Tier(name string) (Tier, bool) {
	i, ok := c.index[name]
	if !ok {
		return Tier{}, false
	}
	return c.tiers[i], true
}

// IsHigherTier a 严格高于 b 时返回 true，任一未知等级都返回 false
func (c *Catalog) IsHigherTier(a, b string) bool {
	ia, ok := c.index[a]
	if !ok {
		return false
	}
	ib, ok := c.index[b]
	if !ok {
		return false
	}
	return ia > ib
}

// Limit 返回等级的二维码数量上限；未知等级按最低等级处理
func (c *Catalog) Limit(name string) (limit int, unlimited bool) {
	t, ok := c.Tier(name)
	if !ok {
		t = c.tiers[0]
	}
	return t.Limit, t.Unlimited()
}

// Price 返回等级在指定周期的价格（分）
func (c *Catalog) Price(name string, period Period) (int64, bool) {
	t, ok := c.Tier(name)
	if !ok {
		return 0, false
	}
	var price int64
	switch period {
	case PeriodMonth:
		price = t.MonthlyPrice
	case PeriodYear:
		price = t.YearlyPrice
	default:
		return 0, false
	}
	return price, price > 0
}

// PromoTier 优惠码精确匹配
func (c *Catalog) PromoTier(code string) (string, bool) {
	tier, ok := c.promo[code]
	return tier, ok
}

// Term 周期对应的有效期
func (c *Catalog) Term(period Period) time.Duration {
	switch period {
	case PeriodYear:
		return c.yearTerm
	case PeriodCode:
		return c.promoTerm
	default:
		return c.monthTerm
	}
}

func (c *Catalog) Currency() string {
	return c.currency
}

// DeleteRetention 删除前的最短保留时间
func (c *Catalog) DeleteRetention() time.Duration {
	return c.retention
}

func (c *Catalog) PublicIDLength() int {
	return c.idLength
}

// CanStartNewPlan 最低等级或当前套餐已到期时才允许开通新套餐
func (c *Catalog) CanStartNewPlan(current string, expiresAt *time.Time, now time.Time) bool {
	if current == c.Lowest() {
		return true
	}
	return expiresAt != nil && !expiresAt.After(now)
}

// ProratedCredit 按剩余时间折算最近一笔付款的抵扣金额
func (c *Catalog) ProratedCredit(amount int64, period Period, expiresAt, now time.Time) int64 {
	if amount <= 0 {
		return 0
	}
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}

	total := c.monthTerm
	if period == PeriodYear {
		total = c.yearTerm
	}
	if total <= 0 {
		return 0
	}

	credit := int64(math.Round(float64(amount) * remaining.Seconds() / total.Seconds()))
	if credit < 0 {
		return 0
	}
	if credit > amount {
		return amount
	}
	return credit
}

// ParsePeriod 解析结账周期，只接受 month / year
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodMonth, PeriodYear:
		return Period(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
}
