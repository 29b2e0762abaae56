package managers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

type memTransactionRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.PaymentTransaction
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{rows: map[string]*domain.PaymentTransaction{}}
}

func (r *memTransactionRepo) Create(ctx context.Context, txn *domain.PaymentTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *txn
	r.rows[txn.MerchantTransactionID] = &cp
	return nil
}

func (r *memTransactionRepo) GetByMerchantTransactionID(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrNoRows
	}
	cp := *txn
	return &cp, nil
}

func (r *memTransactionRepo) Update(ctx context.Context, txn *domain.PaymentTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *txn
	r.rows[txn.MerchantTransactionID] = &cp
	return nil
}

type memPurchaseRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*domain.FilePurchase
}

func newMemPurchaseRepo() *memPurchaseRepo {
	return &memPurchaseRepo{nextID: 1, rows: map[int64]*domain.FilePurchase{}}
}

func (r *memPurchaseRepo) Create(ctx context.Context, p *domain.FilePurchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.nextID
	r.nextID++
	cp := *p
	r.rows[p.ID] = &cp
	return nil
}

func (r *memPurchaseRepo) GetByID(ctx context.Context, id int64) (*domain.FilePurchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (r *memPurchaseRepo) GetByTrxNumber(ctx context.Context, trx string) (*domain.FilePurchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if p.TrxNumber == trx {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNoRows
}

func (r *memPurchaseRepo) Update(ctx context.Context, p *domain.FilePurchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.rows[p.ID] = &cp
	return nil
}

func (r *memPurchaseRepo) ListByUser(ctx context.Context, email string) ([]*domain.FilePurchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.FilePurchase
	for _, p := range r.rows {
		if p.UserEmail == email {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memPurchaseRepo) FindPendingByAmountWindow(ctx context.Context, email string, amount decimal.Decimal, ts time.Time, window time.Duration) ([]*domain.FilePurchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.FilePurchase
	for _, p := range r.rows {
		if p.UserEmail != email || p.PaymentStatus != domain.PaymentPending || !p.Amount.Equal(amount) {
			continue
		}
		delta := p.CreatedAt.Sub(ts)
		if delta < -window || delta > window {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memPackageRepo struct {
	rows map[int64]*domain.Package
}

func newMemPackageRepo(pkgs ...*domain.Package) *memPackageRepo {
	r := &memPackageRepo{rows: map[int64]*domain.Package{}}
	for _, p := range pkgs {
		r.rows[p.ID] = p
	}
	return r
}

func (r *memPackageRepo) List(ctx context.Context) ([]*domain.Package, error) {
	var out []*domain.Package
	for _, p := range r.rows {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memPackageRepo) GetByID(ctx context.Context, id int64) (*domain.Package, error) {
	p, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

type usageKey struct {
	subID int64
	day   string
}

type memSubscriptionRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*domain.UserPackage
	usage  map[usageKey]*domain.DailyOrderUsage
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{
		nextID: 1,
		rows:   map[int64]*domain.UserPackage{},
		usage:  map[usageKey]*domain.DailyOrderUsage{},
	}
}

func (r *memSubscriptionRepo) Create(ctx context.Context, s *domain.UserPackage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = r.nextID
	r.nextID++
	cp := *s
	r.rows[s.ID] = &cp
	return nil
}

func (r *memSubscriptionRepo) GetByID(ctx context.Context, id int64) (*domain.UserPackage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (r *memSubscriptionRepo) Update(ctx context.Context, s *domain.UserPackage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.rows[s.ID] = &cp
	return nil
}

func (r *memSubscriptionRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *memSubscriptionRepo) ActiveByUser(ctx context.Context, email string, packageType domain.PackageType) (*domain.UserPackage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.UserEmail == email && s.Status == domain.SubscriptionActive && s.Package.PackageType == packageType {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNoRows
}

func (r *memSubscriptionRepo) ListByUser(ctx context.Context, email string) ([]*domain.UserPackage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.UserPackage
	for _, s := range r.rows {
		if s.UserEmail == email {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memSubscriptionRepo) DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.rows {
		if s.Status == domain.SubscriptionPending && s.CreatedAt.Before(cutoff) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func (r *memSubscriptionRepo) GetUsage(ctx context.Context, userPackageID int64, day time.Time) (*domain.DailyOrderUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.usage[usageKey{userPackageID, day.Format("2006-01-02")}]
	if !ok {
		return nil, domain.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (r *memSubscriptionRepo) IncrementUsage(ctx context.Context, userPackageID int64, day time.Time, n int) (*domain.DailyOrderUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := usageKey{userPackageID, day.Format("2006-01-02")}
	u, ok := r.usage[key]
	if !ok {
		u = &domain.DailyOrderUsage{UserPackageID: userPackageID, Date: day}
		r.usage[key] = u
	}
	u.OrdersUsed += n
	cp := *u
	return &cp, nil
}

func (r *memSubscriptionRepo) ListUsage(ctx context.Context, userPackageID int64, days int) ([]*domain.DailyOrderUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.DailyOrderUsage
	for key, u := range r.usage {
		if key.subID == userPackageID {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memWebhookLogRepo struct {
	mu   sync.Mutex
	logs []*domain.WebhookLog
}

func newMemWebhookLogRepo() *memWebhookLogRepo {
	return &memWebhookLogRepo{}
}

func (r *memWebhookLogRepo) Create(ctx context.Context, l *domain.WebhookLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, l)
	return nil
}

func (r *memWebhookLogRepo) Update(ctx context.Context, l *domain.WebhookLog) error {
	return nil
}

type fakeGateway struct {
	mu          sync.Mutex
	status      domain.GatewayStatus
	statusErr   error
	session     domain.PaymentSession
	initErr     error
	checkCalls  int
	initCalls   int
	lastInitArg domain.InitializePaymentParams
}

func (g *fakeGateway) Initialize(ctx context.Context, p domain.InitializePaymentParams) (domain.PaymentSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initCalls++
	g.lastInitArg = p
	if g.initErr != nil {
		return domain.PaymentSession{}, g.initErr
	}
	session := g.session
	if session.MerchantTransactionID == "" {
		session.MerchantTransactionID = p.MerchantTransactionID
	}
	return session, nil
}

func (g *fakeGateway) CheckStatus(ctx context.Context, merchantTransactionID string) (domain.GatewayStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkCalls++
	if g.statusErr != nil {
		return domain.GatewayStatus{}, g.statusErr
	}
	return g.status, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *fakeMailer) SendReceipt(ctx context.Context, to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	return nil
}
