// Package checkout holds the transient state of a sale being composed: the
// selected customer, the cart lines and the running total. It enforces the
// minor-customer restriction at selection time and again at submission, and
// knows nothing about HTTP; submission goes through the Submitter port.
package checkout

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoCustomer      = errors.New("no customer selected")
	ErrUnderage        = errors.New("customer is under 18 and cannot purchase")
	ErrEmptyCart       = errors.New("cart has no items")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrSubmitInFlight  = errors.New("a submission is already in progress")
)

// State of a sale-composition session. The session never stores a terminal
// "submitted" state: a successful submission clears everything back to
// Empty so the next sale starts fresh.
type State int

const (
	Empty State = iota
	CustomerSelected
	Composing
	Submitting
)

func (s State) String() string {
	switch s {
	case CustomerSelected:
		return "customer-selected"
	case Composing:
		return "composing"
	case Submitting:
		return "submitting"
	default:
		return "empty"
	}
}

// CatalogItem is the read-only slice of a medication the cart needs.
type CatalogItem struct {
	ID        int64
	Name      string
	Dosage    string
	UnitPrice float64
}

// Customer carries the fields the age gate needs.
type Customer struct {
	ID        int64
	FullName  string
	TaxID     string
	BirthDate time.Time
}

// Line is one aggregated cart entry, keyed by catalog item identity.
type Line struct {
	Item     CatalogItem
	Quantity int64
}

// Submitter sends a finished cart to the sale endpoint.
type Submitter interface {
	SubmitSale(ctx context.Context, customerID int64, lines []Line) error
}

// Snapshot is the read-only view handed to the rendering layer.
type Snapshot struct {
	Customer *Customer
	Lines    []Line
	Total    float64
	State    State
}

// Session is a single sale-composition workflow. Sessions are not safe for
// concurrent use; each view owns its own, driven by one event handler at a
// time.
type Session struct {
	submitter  Submitter
	now        func() time.Time
	customer   *Customer
	lines      []Line
	submitting bool
}

func NewSession(submitter Submitter) *Session {
	return &Session{submitter: submitter, now: time.Now}
}

// NewSessionAt fixes the clock the age gate reads, for tests.
func NewSessionAt(submitter Submitter, now func() time.Time) *Session {
	return &Session{submitter: submitter, now: now}
}

// Age reports whole years elapsed from birth to now, birthday-aware: the
// year only counts once the anniversary has passed.
func Age(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if birth.AddDate(years, 0, 0).After(now) {
		years--
	}
	return years
}

// SelectCustomer sets the customer for the sale. Customers under 18 are
// rejected up front so the user never builds a cart that cannot be
// submitted.
func (s *Session) SelectCustomer(c Customer) error {
	if s.submitting {
		return ErrSubmitInFlight
	}
	if Age(c.BirthDate, s.now()) < 18 {
		return ErrUnderage
	}
	customer := c
	s.customer = &customer
	return nil
}

// ClearCustomer drops the current customer selection, keeping the cart.
func (s *Session) ClearCustomer() {
	if s.submitting {
		return
	}
	s.customer = nil
}

// AddToCart adds quantity units of an item. A line for the same item
// already in the cart absorbs the quantity instead of duplicating.
func (s *Session) AddToCart(item CatalogItem, quantity int64) error {
	if s.submitting {
		return ErrSubmitInFlight
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	for i := range s.lines {
		if s.lines[i].Item.ID == item.ID {
			s.lines[i].Quantity += quantity
			return nil
		}
	}
	s.lines = append(s.lines, Line{Item: item, Quantity: quantity})
	return nil
}

// SetLineQuantity replaces a line's quantity. Zero or negative removes the
// line; a line cannot remain in the cart with no units.
func (s *Session) SetLineQuantity(itemID, quantity int64) {
	if s.submitting {
		return
	}
	if quantity <= 0 {
		s.RemoveLine(itemID)
		return
	}
	for i := range s.lines {
		if s.lines[i].Item.ID == itemID {
			s.lines[i].Quantity = quantity
			return
		}
	}
}

// RemoveLine drops the line for itemID. Removing an absent line is a no-op.
func (s *Session) RemoveLine(itemID int64) {
	if s.submitting {
		return
	}
	for i := range s.lines {
		if s.lines[i].Item.ID == itemID {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return
		}
	}
}

// Total sums unitPrice × quantity over a set of lines. No rounding is
// applied; display formatting owns that.
func Total(lines []Line) float64 {
	var total float64
	for _, line := range lines {
		total += line.Item.UnitPrice * float64(line.Quantity)
	}
	return total
}

// Submit validates the session and hands the cart to the submitter. All
// precondition failures surface before any network call. On success the
// session returns to Empty; on a remote error the cart and customer stay
// untouched so the user can adjust and retry.
func (s *Session) Submit(ctx context.Context) error {
	if s.submitting {
		return ErrSubmitInFlight
	}
	if s.customer == nil {
		return ErrNoCustomer
	}
	if Age(s.customer.BirthDate, s.now()) < 18 {
		return ErrUnderage
	}
	if len(s.lines) == 0 {
		return ErrEmptyCart
	}

	s.submitting = true
	err := s.submitter.SubmitSale(ctx, s.customer.ID, s.snapshotLines())
	s.submitting = false
	if err != nil {
		return err
	}
	s.Reset()
	return nil
}

// Reset discards the customer selection and cart, as when the sale modal
// closes.
func (s *Session) Reset() {
	s.customer = nil
	s.lines = nil
	s.submitting = false
}

// State derives the machine state from the session contents.
func (s *Session) State() State {
	switch {
	case s.submitting:
		return Submitting
	case len(s.lines) > 0:
		return Composing
	case s.customer != nil:
		return CustomerSelected
	default:
		return Empty
	}
}

// Snapshot returns a defensive copy for rendering.
func (s *Session) Snapshot() Snapshot {
	var customer *Customer
	if s.customer != nil {
		c := *s.customer
		customer = &c
	}
	return Snapshot{
		Customer: customer,
		Lines:    s.snapshotLines(),
		Total:    Total(s.lines),
		State:    s.State(),
	}
}

func (s *Session) snapshotLines() []Line {
	lines := make([]Line, len(s.lines))
	copy(lines, s.lines)
	return lines
}
