package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/kirillkom/tradeflow/internal/core/domain"
	"github.com/kirillkom/tradeflow/internal/core/ports"
)

const DefaultCorrelationWindow = 7 * 24 * time.Hour

var legalSuffix = regexp.MustCompile(`[\s,]+(ltd|limited|corp|inc|company)\.?$`)

var (
	supplierFieldKeys = []string{"supplier_name", "seller_name"}
	tradingFieldKeys  = []string{"buyer_name", "trading_company_name"}
)

// NormalizeCompanyName lowercases and trims name and strips one trailing legal suffix.
func NormalizeCompanyName(name string) string {
	s := norm.NFKC.String(name)
	s = cases.Lower(language.Und).String(s)
	s = strings.TrimSpace(s)
	s = legalSuffix.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

type Correlator struct {
	repo   ports.TransactionRepository
	window time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewCorrelator(repo ports.TransactionRepository, window time.Duration, logger *slog.Logger) *Correlator {
	if window <= 0 {
		window = DefaultCorrelationWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{
		repo:   repo,
		window: window,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// FindRelatedTransaction returns the newest open transaction of the same user whose
// supplier or trading company matches doc. A nil transaction with nil error means none matched.
func (c *Correlator) FindRelatedTransaction(ctx context.Context, doc *domain.Document) (*domain.Transaction, error) {
	if doc == nil || strings.TrimSpace(doc.UserID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "find related transaction", errors.New("document with user id is required"))
	}

	keys := correlationKeysOf(doc)
	if keys.empty() {
		return nil, nil
	}

	since := c.now().Add(-c.window)
	candidates, err := c.repo.FindOpenSince(ctx, doc.UserID, since)
	if err != nil {
		return nil, fmt.Errorf("find candidate transactions: %w", err)
	}
	slices.SortStableFunc(candidates, func(a, b domain.Transaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	for i := range candidates {
		candidate := &candidates[i]
		if candidate.Status == domain.TxStatusCompleted || candidate.CreatedAt.Before(since) {
			continue
		}
		if keys.matches(candidate) {
			c.logger.Debug("transaction_correlated",
				"document_id", doc.ID,
				"transaction_id", candidate.ID,
				"supplier_key", keys.supplier,
				"trading_key", keys.trading,
			)
			return candidate, nil
		}
	}
	return nil, nil
}

type correlationKeys struct {
	supplier string
	trading  string
}

func correlationKeysOf(doc *domain.Document) correlationKeys {
	var supplier, trading string
	if doc.Entities != nil {
		supplier = doc.Entities.Supplier.NameOrEmpty()
		trading = doc.Entities.TradingCompany.NameOrEmpty()
	}
	if strings.TrimSpace(supplier) == "" {
		supplier = doc.Field(supplierFieldKeys...)
	}
	if strings.TrimSpace(trading) == "" {
		trading = doc.Field(tradingFieldKeys...)
	}
	return correlationKeys{
		supplier: NormalizeCompanyName(supplier),
		trading:  NormalizeCompanyName(trading),
	}
}

func (k correlationKeys) empty() bool {
	return k.supplier == "" && k.trading == ""
}

func (k correlationKeys) matches(tx *domain.Transaction) bool {
	candTrading := NormalizeCompanyName(tx.Entities.TradingCompany.NameOrEmpty())
	// the trading company stands in for the supplier only when none was stored
	candSupplier := NormalizeCompanyName(tx.Entities.Supplier.NameOrEmpty())
	if candSupplier == "" {
		candSupplier = candTrading
	}

	if k.supplier != "" && k.supplier == candSupplier {
		return true
	}
	return k.trading != "" && k.trading == candTrading
}
