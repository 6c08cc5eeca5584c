package cache

import (
	"time"

	"github.com/ppiankov/reportlens/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// NoExpiration keeps an entry until it is deleted or the cache is dropped
const NoExpiration time.Duration = -1

// Key namespaces. Each feature owns one prefix or suffix so keys never collide.
const (
	chatFactCheckPrefix = "chat_fact_check_"
	statementPrefix     = "statement_fact_check_"
	summarySuffix       = "_summary_cache"
	factCheckSuffix     = "_fact_check_cache"
	initialFetchSuffix  = "_initial_fetch"

	// FinancialStatementsKey holds the flattened statements payload
	FinancialStatementsKey = "financial_statements_cache"
)

// ChatFactCheckKey is the cache key of a chat message's fact-check result
func ChatFactCheckKey(messageID string) string {
	return chatFactCheckPrefix + messageID
}

// SummaryKey is the cache key of a section's narrative payload
func SummaryKey(s model.Section) string {
	return s.CacheName() + summarySuffix
}

// SectionFactCheckKey is the cache key of a section's fact-check result
func SectionFactCheckKey(s model.Section) string {
	return s.CacheName() + factCheckSuffix
}

// InitialFetchKey is the sentinel recording that a section's automatic fetch already ran
func InitialFetchKey(s model.Section) string {
	return s.CacheName() + initialFetchSuffix
}

// StatementFactCheckKey is the cache key of a free-standing statement's fact-check
func StatementFactCheckKey(statement string) string {
	return statementPrefix + statement
}
