package service

import (
	"context"
	"math"
	"strings"

	"exchange_pro/internal/domain"
)

// maxArticles caps how many headlines are scored and returned
const maxArticles = 20

var bullishKeywords = []string{
	"surge", "soar", "rally", "bull", "bullish", "gain", "gains", "rises", "rising",
	"jumps", "jump", "spikes", "spike", "climbs", "climb", "hits high", "all-time high",
	"ath", "breakout", "momentum", "buy", "buying", "accumulate", "uptrend", "positive",
	"optimistic", "profit", "boom", "strong", "outperform", "record", "breakthrough",
	"adoption", "institutional", "upgrade", "growth", "recover", "recovery", "rebound",
}

var bearishKeywords = []string{
	"crash", "plunge", "fall", "falling", "drop", "drops", "decline", "bear", "bearish",
	"sell", "selling", "selloff", "dump", "tank", "collapse", "slump", "tumble", "sink",
	"downtrend", "negative", "pessimistic", "loss", "losses", "risk", "risky", "danger",
	"warning", "warn", "caution", "concern", "worried", "fear", "panic", "volatile",
}

// AnalyzeSentiment scores a headline by counting keyword substrings.
// Overlapping keywords ("bull" in "bullish") each count.
func AnalyzeSentiment(text string) domain.Sentiment {
	lower := strings.ToLower(text)
	var bullish, bearish int
	for _, k := range bullishKeywords {
		if strings.Contains(lower, k) {
			bullish++
		}
	}
	for _, k := range bearishKeywords {
		if strings.Contains(lower, k) {
			bearish++
		}
	}
	switch {
	case bullish > bearish:
		return domain.SentimentBullish
	case bearish > bullish:
		return domain.SentimentBearish
	default:
		return domain.SentimentNeutral
	}
}

// NewsDigest is scored headlines plus the rounded share of each sentiment
type NewsDigest struct {
	Items      []domain.NewsItem `json:"items"`
	BullishPct int               `json:"bullish_pct"`
	BearishPct int               `json:"bearish_pct"`
	NeutralPct int               `json:"neutral_pct"`
}

// NewsService fetches and scores market headlines
type NewsService struct {
	source domain.NewsSource
}

// NewNewsService creates a NewsService over source
func NewNewsService(source domain.NewsSource) *NewsService {
	return &NewsService{source: source}
}

// Latest returns up to 20 scored general headlines; false when none are available
func (n *NewsService) Latest(ctx context.Context) (NewsDigest, bool) {
	items, ok := n.source.FetchNews(ctx, "general")
	if !ok || len(items) == 0 {
		return NewsDigest{}, false
	}
	if len(items) > maxArticles {
		items = items[:maxArticles]
	}
	return Digest(items), true
}

// Digest scores items and computes the sentiment split
func Digest(items []domain.NewsItem) NewsDigest {
	out := NewsDigest{Items: make([]domain.NewsItem, len(items))}
	var bullish, bearish, neutral int
	for i, it := range items {
		it.Sentiment = AnalyzeSentiment(it.Headline)
		switch it.Sentiment {
		case domain.SentimentBullish:
			bullish++
		case domain.SentimentBearish:
			bearish++
		default:
			neutral++
		}
		out.Items[i] = it
	}

	total := float64(len(items))
	if total > 0 {
		out.BullishPct = int(math.Round(float64(bullish) / total * 100))
		out.BearishPct = int(math.Round(float64(bearish) / total * 100))
		out.NeutralPct = int(math.Round(float64(neutral) / total * 100))
	}
	return out
}
