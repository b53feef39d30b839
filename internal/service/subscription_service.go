package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/qs3c/qrcode_go_server/internal/model"
	"github.com/qs3c/qrcode_go_server/internal/model/dto"
	"github.com/qs3c/qrcode_go_server/internal/pkg/metrics"
	"github.com/qs3c/qrcode_go_server/internal/pkg/payment"
	"github.com/qs3c/qrcode_go_server/internal/plan"
	"github.com/qs3c/qrcode_go_server/internal/repository"
)

// 套餐来源标记
const (
	UpgradeMethodCodePrefix = "code:"
	UpgradeMethodCredit     = "credit"
	UpgradeMethodCancelled  = "cancelled"
)

var (
	ErrInvalidPromoCode   = errors.New("优惠码无效")
	ErrPlanStillActive    = errors.New("当前套餐尚未到期，无法开通新套餐")
	ErrUnknownPlan        = errors.New("套餐不存在")
	ErrPlanNotPurchasable = errors.New("该套餐不支持此计费周期")
	ErrCheckoutNotFound   = errors.New("支付会话不存在或已过期")
	ErrCheckoutForbidden  = errors.New("无权完成该支付会话")
	ErrCheckoutIncomplete = errors.New("支付尚未完成")
	ErrNoActivePlan       = errors.New("当前没有可取消的订阅")
	ErrGatewayUnavailable = errors.New("支付服务暂时不可用")
)

type SubscriptionService struct {
	db          *gorm.DB
	userRepo    *repository.UserRepository
	paymentRepo *repository.PaymentRepository
	checkouts   *repository.CheckoutStore
	quota       *QuotaService
	catalog     *plan.Catalog
	gateway     payment.Gateway
	paypal      payment.Canceller
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewSubscriptionService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	paymentRepo *repository.PaymentRepository,
	checkouts *repository.CheckoutStore,
	quota *QuotaService,
	catalog *plan.Catalog,
	gateway payment.Gateway,
	paypal payment.Canceller,
	m *metrics.Metrics,
) *SubscriptionService {
	return &SubscriptionService{
		db:          db,
		userRepo:    userRepo,
		paymentRepo: paymentRepo,
		checkouts:   checkouts,
		quota:       quota,
		catalog:     catalog,
		gateway:     gateway,
		paypal:      paypal,
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock 替换时间来源
func (s *SubscriptionService) SetClock(now func() time.Time) {
	s.now = now
}

// Reconcile 已取消且到期的套餐回落到最低等级；条件不满足时不做任何修改
func (s *SubscriptionService) Reconcile(ctx context.Context, user *model.User) (*model.User, error) {
	now := s.now()
	if user.Plan == s.catalog.Lowest() || !user.PlanCancelled {
		return user, nil
	}
	if user.PlanExpiresAt == nil || user.PlanExpiresAt.After(now) {
		return user, nil
	}

	previous := user.Plan
	user.Plan = s.catalog.Lowest()
	user.PlanCancelled = false
	user.StripeSubscriptionID = nil
	user.PaypalSubscriptionID = nil
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	s.metrics.IncSubscriptionEvent("expired")
	log.WithFields(log.Fields{
		"user_id": user.ID,
		"from":    previous,
	}).Info("Cancelled plan expired, reverted to lowest tier")

	if _, err := s.quota.Enforce(ctx, user); err != nil {
		return user, err
	}
	return user, nil
}

// ReconcileAll 对所有账号执行到期检查，返回回退的账号数
func (s *SubscriptionService) ReconcileAll(ctx context.Context) (int, error) {
	users, err := s.userRepo.List()
	if err != nil {
		return 0, err
	}

	reverted := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return reverted, err
		}
		before := u.Plan
		if _, err := s.Reconcile(ctx, u); err != nil {
			log.WithError(err).WithField("user_id", u.ID).Warn("Failed to reconcile plan")
			continue
		}
		if u.Plan != before {
			reverted++
		}
	}
	return reverted, nil
}

// ApplyPromoCode 使用优惠码开通套餐
func (s *SubscriptionService) ApplyPromoCode(ctx context.Context, user *model.User, code string) (*model.User, error) {
	code = strings.TrimSpace(code)
	tier, ok := s.catalog.PromoTier(code)
	if !ok {
		return nil, ErrInvalidPromoCode
	}

	now := s.now()
	if !s.catalog.CanStartNewPlan(user.Plan, user.PlanExpiresAt, now) {
		return nil, ErrPlanStillActive
	}

	if err := s.activate(ctx, user, tier, UpgradeMethodCodePrefix+code, plan.PeriodCode, 0, nil); err != nil {
		return nil, err
	}

	s.metrics.IncSubscriptionEvent("promo")
	return user, nil
}

// StartCheckout 计算价格和抵扣后创建支付会话
func (s *SubscriptionService) StartCheckout(ctx context.Context, user *model.User, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	period, err := plan.ParsePeriod(req.Period)
	if err != nil {
		return nil, err
	}
	if !s.catalog.Known(req.Plan) {
		return nil, ErrUnknownPlan
	}
	price, ok := s.catalog.Price(req.Plan, period)
	if !ok {
		return nil, ErrPlanNotPurchasable
	}

	now := s.now()
	eligible := s.catalog.CanStartNewPlan(user.Plan, user.PlanExpiresAt, now)
	upgrade := user.Plan != s.catalog.Lowest() && s.catalog.IsHigherTier(req.Plan, user.Plan)
	if !eligible && !upgrade {
		return nil, ErrPlanStillActive
	}

	var credit int64
	if upgrade && user.PlanExpiresAt != nil {
		credit, err = s.creditFor(user, *user.PlanExpiresAt, now)
		if err != nil {
			return nil, err
		}
	}

	amount := price - credit
	if amount < 0 {
		amount = 0
	}

	pending := &repository.PendingCheckout{
		UserID:              user.ID,
		Plan:                req.Plan,
		Period:              string(period),
		Amount:              amount,
		Credit:              credit,
		ReplacedStripeSubID: deref(user.StripeSubscriptionID),
		ReplacedPaypalSubID: deref(user.PaypalSubscriptionID),
		CreatedAt:           now,
	}

	resp := &dto.CheckoutResponse{
		Amount:   amount,
		Credit:   credit,
		Currency: s.catalog.Currency(),
	}

	// 抵扣覆盖全部价格时直接生效
	if amount == 0 {
		if err := s.finalize(ctx, user, pending, UpgradeMethodCredit, ""); err != nil {
			return nil, err
		}
		resp.Completed = true
		return resp, nil
	}

	session, err := s.gateway.CreateCheckout(ctx, &payment.CheckoutRequest{
		Tier:          req.Plan,
		Period:        string(period),
		Amount:        amount,
		Currency:      s.catalog.Currency(),
		CustomerEmail: user.Email,
		ReferenceID:   strconv.FormatInt(user.ID, 10),
	})
	if err != nil {
		s.metrics.IncGatewayError(s.gateway.Name(), "checkout")
		log.WithError(err).WithFields(log.Fields{
			"user_id": user.ID,
			"plan":    req.Plan,
			"period":  period,
		}).Error("Failed to create checkout session")
		return nil, ErrGatewayUnavailable
	}

	pending.SessionID = session.ID
	if err := s.checkouts.Save(ctx, pending); err != nil {
		return nil, err
	}

	s.metrics.IncSubscriptionEvent("checkout_started")

	resp.SessionID = session.ID
	resp.CheckoutURL = session.URL
	return resp, nil
}

// CompleteCheckout 支付完成后开通套餐
func (s *SubscriptionService) CompleteCheckout(ctx context.Context, user *model.User, sessionID string) (*model.User, error) {
	pending, err := s.checkouts.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrCheckoutNotFound) {
			return nil, ErrCheckoutNotFound
		}
		return nil, err
	}
	if pending.UserID != user.ID {
		return nil, ErrCheckoutForbidden
	}

	// 支付状态无法确认时保留会话，用户可以稍后重试
	session, err := s.gateway.RetrieveCheckout(ctx, sessionID)
	if err != nil {
		s.metrics.IncGatewayError(s.gateway.Name(), "retrieve")
		log.WithError(err).WithField("session_id", sessionID).Warn("Failed to fetch checkout session")
		return nil, ErrGatewayUnavailable
	}
	if !session.Completed {
		return nil, ErrCheckoutIncomplete
	}
	subscriptionID := session.SubscriptionID

	// 先删除会话，防止重复开通
	claimed, err := s.checkouts.Delete(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrCheckoutNotFound
	}

	if err := s.finalize(ctx, user, pending, s.gateway.Name(), subscriptionID); err != nil {
		if saveErr := s.checkouts.Save(ctx, pending); saveErr != nil {
			log.WithError(saveErr).WithField("session_id", sessionID).Error("Failed to restore pending checkout")
		}
		return nil, err
	}

	s.metrics.IncSubscriptionEvent("checkout_completed")
	return user, nil
}

// Cancel 取消续费，当前套餐保持到到期时间
func (s *SubscriptionService) Cancel(ctx context.Context, user *model.User) (*model.User, error) {
	if user.Plan == s.catalog.Lowest() || user.PlanExpiresAt == nil {
		return nil, ErrNoActivePlan
	}

	user.PlanCancelled = true
	user.UpgradeMethod = UpgradeMethodCancelled
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	s.cancelExternal(ctx, user.ID, deref(user.StripeSubscriptionID), deref(user.PaypalSubscriptionID))
	s.metrics.IncSubscriptionEvent("cancelled")

	return user, nil
}

// Status 当前订阅状态
func (s *SubscriptionService) Status(user *model.User) (*dto.SubscriptionStatus, error) {
	now := s.now()
	quota, err := s.quota.GetQuotaInfo(user)
	if err != nil {
		return nil, err
	}

	status := &dto.SubscriptionStatus{
		Plan:            user.Plan,
		UpgradeMethod:   user.UpgradeMethod,
		PlanCancelled:   user.PlanCancelled,
		CanStartNewPlan: s.catalog.CanStartNewPlan(user.Plan, user.PlanExpiresAt, now),
		Quota:           quota,
	}
	if user.PlanExpiresAt != nil {
		status.PlanExpiresAt = formatTime(*user.PlanExpiresAt)
		if remaining := user.PlanExpiresAt.Sub(now); remaining > 0 {
			status.RemainingSeconds = int64(remaining.Seconds())
		}
		if !user.PlanCancelled && user.Plan != s.catalog.Lowest() {
			status.NextChargeAt = status.PlanExpiresAt
		}
	}
	return status, nil
}

// Catalog 套餐目录
func (s *SubscriptionService) Catalog() *dto.PlanCatalogResponse {
	resp := &dto.PlanCatalogResponse{Currency: s.catalog.Currency()}
	for _, t := range s.catalog.Tiers() {
		info := &dto.TierInfo{
			Name:         t.Name,
			Limit:        t.Limit,
			Unlimited:    t.Unlimited(),
			MonthlyPrice: t.MonthlyPrice,
			YearlyPrice:  t.YearlyPrice,
		}
		if info.Unlimited {
			info.Limit = -1
		}
		resp.Tiers = append(resp.Tiers, info)
	}
	return resp
}

// creditFor 按最近一笔流水计算抵扣
func (s *SubscriptionService) creditFor(user *model.User, expiresAt, now time.Time) (int64, error) {
	last, err := s.paymentRepo.GetLatestByUser(user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return s.catalog.ProratedCredit(last.Amount, plan.Period(last.Period), expiresAt, now), nil
}

// finalize 开通支付套餐并取消被替换的旧订阅
func (s *SubscriptionService) finalize(ctx context.Context, user *model.User, pending *repository.PendingCheckout, method, subscriptionID string) error {
	err := s.activate(ctx, user, pending.Plan, method, plan.Period(pending.Period), pending.Amount, func(u *model.User) {
		u.PaypalSubscriptionID = nil
		u.StripeSubscriptionID = nil
		if subscriptionID != "" {
			u.StripeSubscriptionID = &subscriptionID
		}
	})
	if err != nil {
		return err
	}

	stripeOld := pending.ReplacedStripeSubID
	if stripeOld == subscriptionID {
		stripeOld = ""
	}
	s.cancelExternal(ctx, user.ID, stripeOld, pending.ReplacedPaypalSubID)
	return nil
}

// activate 在同一事务中更新账户并追加流水，然后执行配额检查
func (s *SubscriptionService) activate(
	ctx context.Context,
	user *model.User,
	tier, method string,
	period plan.Period,
	amount int64,
	mutate func(*model.User),
) error {
	now := s.now()
	expiresAt := now.Add(s.catalog.Term(period))

	updated := *user
	updated.Plan = tier
	updated.UpgradeMethod = method
	updated.PlanExpiresAt = &expiresAt
	updated.PlanCancelled = false
	if mutate != nil {
		mutate(&updated)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.WithTx(tx).Update(&updated); err != nil {
			return err
		}
		return s.paymentRepo.WithTx(tx).Append(&model.Payment{
			UserID:    user.ID,
			Plan:      tier,
			Amount:    amount,
			Period:    string(period),
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}
	*user = updated

	log.WithFields(log.Fields{
		"user_id": user.ID,
		"plan":    tier,
		"period":  period,
		"amount":  amount,
		"method":  method,
	}).Info("Plan activated")

	_, err = s.quota.Enforce(ctx, user)
	return err
}

// cancelExternal 尽力取消外部订阅，失败只记录日志
func (s *SubscriptionService) cancelExternal(ctx context.Context, userID int64, stripeID, paypalID string) {
	if stripeID != "" && s.gateway != nil {
		if err := s.gateway.CancelSubscription(ctx, stripeID); err != nil {
			s.metrics.IncGatewayError(s.gateway.Name(), "cancel")
			log.WithError(err).WithFields(log.Fields{
				"user_id":         userID,
				"subscription_id": stripeID,
			}).Warn("Failed to cancel subscription")
		}
	}
	if paypalID != "" && s.paypal != nil {
		if err := s.paypal.CancelSubscription(ctx, paypalID); err != nil {
			s.metrics.IncGatewayError(payment.GatewayPayPal, "cancel")
			log.WithError(err).WithFields(log.Fields{
				"user_id":         userID,
				"subscription_id": paypalID,
			}).Warn("Failed to cancel paypal subscription")
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
