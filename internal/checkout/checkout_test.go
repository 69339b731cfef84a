package checkout

import (
	"context"
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

type fakeSubmitter struct {
	err        error
	calls      int
	customerID int64
	lines      []Line
}

func (f *fakeSubmitter) SubmitSale(ctx context.Context, customerID int64, lines []Line) error {
	f.calls++
	f.customerID = customerID
	f.lines = lines
	return f.err
}

func adult() Customer {
	return Customer{ID: 1, FullName: "Ana Souza", BirthDate: testNow.AddDate(-30, 0, 0)}
}

func paracetamol() CatalogItem {
	return CatalogItem{ID: 1, Name: "Paracetamol", UnitPrice: 12.50}
}

func TestAge(t *testing.T) {
	tests := []struct {
		name  string
		birth time.Time
		want  int
	}{
		{"exactly 18 years ago", testNow.AddDate(-18, 0, 0), 18},
		{"17 years and 364 days ago", testNow.AddDate(-18, 0, 1), 17},
		{"birthday tomorrow", testNow.AddDate(-25, 0, 1), 24},
		{"birthday today", testNow.AddDate(-25, 0, 0), 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Age(tt.birth, testNow); got != tt.want {
				t.Errorf("Age() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSelectCustomerAgeGate(t *testing.T) {
	s := NewSessionAt(&fakeSubmitter{}, fixedNow)

	minor := Customer{ID: 2, FullName: "Minor", BirthDate: testNow.AddDate(-18, 0, 1)}
	if err := s.SelectCustomer(minor); !errors.Is(err, ErrUnderage) {
		t.Fatalf("SelectCustomer(minor) = %v, want ErrUnderage", err)
	}
	if s.State() != Empty {
		t.Fatalf("state after rejected selection = %v, want Empty", s.State())
	}

	exactly18 := Customer{ID: 3, FullName: "Adult", BirthDate: testNow.AddDate(-18, 0, 0)}
	if err := s.SelectCustomer(exactly18); err != nil {
		t.Fatalf("SelectCustomer(18yo) = %v, want nil", err)
	}
	if s.State() != CustomerSelected {
		t.Errorf("state = %v, want CustomerSelected", s.State())
	}
}

func TestAddToCartMergesDuplicates(t *testing.T) {
	s := NewSessionAt(&fakeSubmitter{}, fixedNow)

	if err := s.AddToCart(paracetamol(), 2); err != nil {
		t.Fatal(err)
	}
	if err := s.AddToCart(paracetamol(), 3); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if len(snap.Lines) != 1 {
		t.Fatalf("lines = %d, want 1 merged line", len(snap.Lines))
	}
	if snap.Lines[0].Quantity != 5 {
		t.Errorf("merged quantity = %d, want 5", snap.Lines[0].Quantity)
	}
}

func TestAddToCartRejectsNonPositiveQuantity(t *testing.T) {
	s := NewSessionAt(&fakeSubmitter{}, fixedNow)
	for _, qty := range []int64{0, -1} {
		if err := s.AddToCart(paracetamol(), qty); !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("AddToCart(qty=%d) = %v, want ErrInvalidQuantity", qty, err)
		}
	}
}

func TestTotalIsAdditive(t *testing.T) {
	lines := []Line{
		{Item: CatalogItem{ID: 1, UnitPrice: 12.50}, Quantity: 3},
		{Item: CatalogItem{ID: 2, UnitPrice: 7.25}, Quantity: 2},
	}
	extra := Line{Item: CatalogItem{ID: 3, UnitPrice: 9.99}, Quantity: 4}

	want := Total(lines) + extra.Item.UnitPrice*float64(extra.Quantity)
	if got := Total(append(lines, extra)); got != want {
		t.Errorf("Total(lines ++ line) = %v, want %v", got, want)
	}
}

func TestCartLifecycleTotals(t *testing.T) {
	s := NewSessionAt(&fakeSubmitter{}, fixedNow)

	if err := s.AddToCart(paracetamol(), 3); err != nil {
		t.Fatal(err)
	}
	if got := s.Snapshot().Total; got != 37.50 {
		t.Fatalf("total after qty 3 = %v, want 37.50", got)
	}

	if err := s.AddToCart(paracetamol(), 2); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if len(snap.Lines) != 1 || snap.Lines[0].Quantity != 5 {
		t.Fatalf("lines = %+v, want single line qty 5", snap.Lines)
	}
	if snap.Total != 62.50 {
		t.Fatalf("total after merge = %v, want 62.50", snap.Total)
	}

	s.SetLineQuantity(1, 0)
	snap = s.Snapshot()
	if len(snap.Lines) != 0 || snap.Total != 0 {
		t.Errorf("after zeroing quantity: lines=%d total=%v, want empty cart", len(snap.Lines), snap.Total)
	}
}

func TestSetLineQuantityAndRemove(t *testing.T) {
	s := NewSessionAt(&fakeSubmitter{}, fixedNow)
	if err := s.AddToCart(paracetamol(), 2); err != nil {
		t.Fatal(err)
	}

	s.SetLineQuantity(1, 7)
	if got := s.Snapshot().Lines[0].Quantity; got != 7 {
		t.Errorf("quantity = %d, want 7", got)
	}

	s.SetLineQuantity(1, -1)
	if len(s.Snapshot().Lines) != 0 {
		t.Error("negative quantity should remove the line")
	}

	// Removing an absent line is a no-op.
	s.RemoveLine(1)
	s.RemoveLine(99)
	if s.State() != Empty {
		t.Errorf("state = %v, want Empty", s.State())
	}
}

func TestSubmitPreconditions(t *testing.T) {
	submitter := &fakeSubmitter{}

	tests := []struct {
		name    string
		prepare func(s *Session)
		wantErr error
	}{
		{
			"no customer",
			func(s *Session) { _ = s.AddToCart(paracetamol(), 1) },
			ErrNoCustomer,
		},
		{
			"empty cart",
			func(s *Session) { _ = s.SelectCustomer(adult()) },
			ErrEmptyCart,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSessionAt(submitter, fixedNow)
			tt.prepare(s)
			before := submitter.calls
			if err := s.Submit(context.Background()); !errors.Is(err, tt.wantErr) {
				t.Errorf("Submit() = %v, want %v", err, tt.wantErr)
			}
			if submitter.calls != before {
				t.Error("precondition failure must not reach the submitter")
			}
		})
	}
}

func TestSubmitSuccessClearsSession(t *testing.T) {
	submitter := &fakeSubmitter{}
	s := NewSessionAt(submitter, fixedNow)

	if err := s.SelectCustomer(adult()); err != nil {
		t.Fatal(err)
	}
	if err := s.AddToCart(paracetamol(), 3); err != nil {
		t.Fatal(err)
	}

	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() = %v", err)
	}
	if submitter.calls != 1 || submitter.customerID != 1 {
		t.Fatalf("submitter got calls=%d customer=%d", submitter.calls, submitter.customerID)
	}
	if len(submitter.lines) != 1 || submitter.lines[0].Quantity != 3 {
		t.Fatalf("submitter lines = %+v", submitter.lines)
	}

	snap := s.Snapshot()
	if snap.State != Empty || snap.Customer != nil || len(snap.Lines) != 0 {
		t.Errorf("session not cleared after success: %+v", snap)
	}
}

func TestSubmitFailurePreservesCart(t *testing.T) {
	submitter := &fakeSubmitter{err: errors.New("stock depleted")}
	s := NewSessionAt(submitter, fixedNow)

	if err := s.SelectCustomer(adult()); err != nil {
		t.Fatal(err)
	}
	if err := s.AddToCart(paracetamol(), 2); err != nil {
		t.Fatal(err)
	}

	if err := s.Submit(context.Background()); err == nil {
		t.Fatal("Submit() = nil, want remote error")
	}

	snap := s.Snapshot()
	if snap.State != Composing {
		t.Errorf("state = %v, want Composing for retry", snap.State)
	}
	if snap.Customer == nil || len(snap.Lines) != 1 || snap.Lines[0].Quantity != 2 {
		t.Errorf("cart not preserved after failure: %+v", snap)
	}

	// Retry after adjusting works against the same session.
	submitter.err = nil
	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("retry Submit() = %v", err)
	}
	if s.State() != Empty {
		t.Errorf("state after retry = %v, want Empty", s.State())
	}
}

func TestMutationsRejectedWhileSubmitting(t *testing.T) {
	s := NewSessionAt(nil, fixedNow)
	blocked := &blockingSubmitter{session: s, t: t}
	s.submitter = blocked

	if err := s.SelectCustomer(adult()); err != nil {
		t.Fatal(err)
	}
	if err := s.AddToCart(paracetamol(), 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() = %v", err)
	}
	if !blocked.checked {
		t.Fatal("submitter never observed the Submitting state")
	}
}

// blockingSubmitter asserts the in-flight guard from inside SubmitSale,
// where the session is mid-submission.
type blockingSubmitter struct {
	session *Session
	t       *testing.T
	checked bool
}

func (b *blockingSubmitter) SubmitSale(ctx context.Context, customerID int64, lines []Line) error {
	b.checked = true
	if b.session.State() != Submitting {
		b.t.Errorf("state during submit = %v, want Submitting", b.session.State())
	}
	if err := b.session.AddToCart(CatalogItem{ID: 9}, 1); !errors.Is(err, ErrSubmitInFlight) {
		b.t.Errorf("AddToCart during submit = %v, want ErrSubmitInFlight", err)
	}
	if err := b.session.Submit(ctx); !errors.Is(err, ErrSubmitInFlight) {
		b.t.Errorf("nested Submit = %v, want ErrSubmitInFlight", err)
	}
	return nil
}

func TestReset(t *testing.T) {
	s := NewSessionAt(&fakeSubmitter{}, fixedNow)
	if err := s.SelectCustomer(adult()); err != nil {
		t.Fatal(err)
	}
	if err := s.AddToCart(paracetamol(), 1); err != nil {
		t.Fatal(err)
	}

	s.Reset()
	snap := s.Snapshot()
	if snap.State != Empty || snap.Customer != nil || len(snap.Lines) != 0 || snap.Total != 0 {
		t.Errorf("Reset left state behind: %+v", snap)
	}
}
