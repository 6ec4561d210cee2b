package client

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nurpe/logistics-bills/internal/billing"
	"github.com/nurpe/logistics-bills/internal/model"
)

// ReviewQueue is the accounting view over bills awaiting settlement. It owns
// its copy of the queue and refetches it wholesale after every mutation.
// Each action key runs at most once at a time; different keys may overlap.
// Responses from overlapping refreshes are applied in arrival order.
type ReviewQueue struct {
	client   *Client
	blNumber string

	mu       sync.Mutex
	bills    []model.Bill
	inFlight map[string]struct{}
}

func NewReviewQueue(client *Client, blNumber string) *ReviewQueue {
	return &ReviewQueue{
		client:   client,
		blNumber: blNumber,
		inFlight: make(map[string]struct{}),
	}
}

func (q *ReviewQueue) Refresh(ctx context.Context) error {
	return q.run("refresh", func() error {
		return q.refresh(ctx)
	})
}

func (q *ReviewQueue) refresh(ctx context.Context) error {
	bills, err := q.client.AwaitingSettlement(ctx, q.blNumber)
	if err != nil {
		return err
	}
	q.mu.Lock()
	q.bills = bills
	q.mu.Unlock()
	return nil
}

func (q *ReviewQueue) Bills() []model.Bill {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.Bill, len(q.bills))
	copy(out, q.bills)
	return out
}

// Filter narrows the local copy by BL number text and status.
func (q *ReviewQueue) Filter(searchText, status string) []model.Bill {
	return billing.Filter(q.Bills(), searchText, status)
}

func (q *ReviewQueue) Summary() model.Summary {
	return billing.Summarize(q.Bills())
}

func (q *ReviewQueue) Find(id uuid.UUID) (model.Bill, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, bill := range q.bills {
		if bill.ID == id {
			return bill, true
		}
	}
	return model.Bill{}, false
}

// Complete asks the service to mark the bill paid. The operator is expected
// to have confirmed the action before calling.
func (q *ReviewQueue) Complete(ctx context.Context, id uuid.UUID) error {
	return q.run("complete:"+id.String(), func() error {
		if _, err := q.client.CompleteBill(ctx, id); err != nil {
			return err
		}
		return q.refresh(ctx)
	})
}

// SettleReserve is only offered for Allinpay bills with an unsettled
// reserve. Local state is untouched when the service rejects it.
func (q *ReviewQueue) SettleReserve(ctx context.Context, id uuid.UUID) error {
	if bill, ok := q.Find(id); ok && !billing.CanSettleReserve(bill) {
		return &ValidationError{Fields: map[string]string{"reserve_status": "reserve is not awaiting settlement"}}
	}
	return q.run("settle:"+id.String(), func() error {
		if _, err := q.client.SettleReserve(ctx, id); err != nil {
			return err
		}
		return q.refresh(ctx)
	})
}

func (q *ReviewQueue) Delete(ctx context.Context, id uuid.UUID) error {
	return q.run("delete:"+id.String(), func() error {
		if err := q.client.DeleteBill(ctx, id); err != nil {
			return err
		}
		return q.refresh(ctx)
	})
}

func (q *ReviewQueue) Update(ctx context.Context, id uuid.UUID, update BillUpdate) error {
	return q.run("update:"+id.String(), func() error {
		if _, err := q.client.UpdateBill(ctx, id, update); err != nil {
			return err
		}
		return q.refresh(ctx)
	})
}

func (q *ReviewQueue) run(key string, fn func() error) error {
	q.mu.Lock()
	if _, busy := q.inFlight[key]; busy {
		q.mu.Unlock()
		return ErrActionInFlight
	}
	q.inFlight[key] = struct{}{}
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		delete(q.inFlight, key)
		q.mu.Unlock()
	}()
	return fn()
}
