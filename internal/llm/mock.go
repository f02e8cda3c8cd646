package llm

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/spherical/order-ocr/internal/domain"
	"github.com/spherical/order-ocr/internal/observability"
)

// mockResponses are the canned extraction sets returned offline.
var mockResponses = [][]domain.OrderItem{
	{
		{ProductCode: "DMCA-4N-SA", Quantity: 22},
		{ProductCode: "DMCA-8N-SA", Quantity: 7},
		{ProductCode: "DMCA-12N-SA", Quantity: 15},
	},
	{
		{ProductCode: "PART-001", Quantity: 10},
		{ProductCode: "PART-002", Quantity: 5},
	},
	{
		{ProductCode: "ABC-123", Quantity: 30},
		{ProductCode: "XYZ-456", Quantity: 12},
		{ProductCode: "DEF-789", Quantity: 8},
		{ProductCode: "GHI-012", Quantity: 25},
	},
}

const (
	mockCostMin = 0.001
	mockCostMax = 0.01
)

// MockClient is the offline recognizer. It never touches the network and
// reports a synthetic cost in the range of real calls.
type MockClient struct {
	mu      sync.Mutex
	rng     *rand.Rand
	latency time.Duration
	logger  *observability.Logger
}

// NewMockClient creates the offline recognizer. A nil rng is seeded from
// the clock; latency simulates a remote round trip.
func NewMockClient(rng *rand.Rand, latency time.Duration, logger *observability.Logger) *MockClient {
	if rng == nil {
		now := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(now, now>>1))
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &MockClient{rng: rng, latency: latency, logger: logger.WithOperation("recognize")}
}

// Variant reports the offline variant.
func (m *MockClient) Variant() domain.RecognizerVariant { return domain.VariantOffline }

// Recognize returns one of the canned sets and a synthetic cost.
func (m *MockClient) Recognize(ctx context.Context, imagePath string) ([]domain.OrderItem, float64, error) {
	if m.latency > 0 {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-time.After(m.latency):
		}
	}

	m.mu.Lock()
	set := mockResponses[m.rng.IntN(len(mockResponses))]
	callCost := mockCostMin + m.rng.Float64()*(mockCostMax-mockCostMin)
	m.mu.Unlock()

	items := make([]domain.OrderItem, len(set))
	copy(items, set)

	m.logger.Debug().Str("image", imagePath).Int("items", len(items)).Float64("cost", callCost).
		Msg("mock recognition complete")
	return items, callCost, nil
}
