package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/abgdnv/bazaar/internal/backend"
	perrors "github.com/abgdnv/bazaar/internal/errors"
	"github.com/abgdnv/bazaar/internal/kv"
	"github.com/abgdnv/bazaar/internal/notify"
	"github.com/abgdnv/bazaar/internal/syncqueue"
	"github.com/google/uuid"
)

// Deps are the collaborators of a Store.
type Deps struct {
	KV           kv.Store
	Backend      backend.Backend
	Queue        *syncqueue.Queue
	Connectivity Connectivity
	Resolver     ProductResolver
	Notifier     notify.Notifier
	Logger       *slog.Logger
}

// Store is the cart and wishlist of one session.
//
// Mutations apply to the in-memory view first. A guest session then rewrites its whole
// document in the kv store, so of two stores sharing a session the last write wins.
// A signed-in session writes through to the backend: transient failures and offline
// periods put the mutation on the sync queue and still succeed, rejections roll the
// mutation back and notify the user.
//
// Every sign-in and sign-out bumps the generation; backend responses that arrive for an
// older generation are ignored.
type Store struct {
	mu         sync.Mutex
	session    string
	state      State
	owner      string
	generation uint64
	revision   uint64
	// loaded is set once the view reflects the backend, so a missing line is known not to exist remotely
	loaded     bool
	lines      []LineItem
	wishlist   []WishlistEntry

	kv       kv.Store
	remote   backend.Backend
	queue    *syncqueue.Queue
	conn     Connectivity
	resolver ProductResolver
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewStore loads the store of session. A session that was signed in is restored
// from the backend; otherwise the guest document is read from the kv store.
func NewStore(ctx context.Context, session string, deps Deps) (*Store, error) {
	if session == "" {
		return nil, fmt.Errorf("empty session id: %w", perrors.ErrValidation)
	}
	s := &Store{
		session:  session,
		state:    StateGuest,
		owner:    GuestOwner,
		kv:       deps.KV,
		remote:   deps.Backend,
		queue:    deps.Queue,
		conn:     deps.Connectivity,
		resolver: deps.Resolver,
		notifier: deps.Notifier,
		logger:   deps.Logger.With("component", "cart", "session_id", session),
		now:      time.Now,
	}
	if s.notifier == nil {
		s.notifier = notify.Multi{}
	}

	var sess sessionDocument
	err := kv.GetJSON(ctx, s.kv, sessionKey(session), &sess)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if err == nil && sess.Owner != "" {
		s.state = StateAuthenticated
		s.owner = sess.Owner
		s.lines, s.wishlist = s.overlayQueued(sess.Owner, nil, nil)
		if err := s.Refresh(ctx); err != nil {
			s.logger.WarnContext(ctx, "signed-in session restored without backend data", "error", err)
		}
		return s, nil
	}

	var doc guestDocument
	if err := kv.GetJSON(ctx, s.kv, guestKey(session), &doc); err != nil && !errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("failed to load guest cart: %w", err)
	}
	s.lines = doc.Lines
	s.wishlist = doc.Wishlist
	return s, nil
}

// Session returns the session id.
func (s *Store) Session() string {
	return s.session
}

// State returns the authentication state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Owner returns the signed-in user id, or GuestOwner.
func (s *Store) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Lines returns the cart lines in the order they were added.
func (s *Store) Lines() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lines == nil {
		return []LineItem{}
	}
	return slices.Clone(s.lines)
}

// Wishlist returns the wishlist entries in the order they were added.
func (s *Store) Wishlist() []WishlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wishlist == nil {
		return []WishlistEntry{}
	}
	return slices.Clone(s.wishlist)
}

// PendingSync returns the mutations waiting for the backend.
func (s *Store) PendingSync() []syncqueue.Operation {
	return s.queue.Pending()
}

// IsInWishlist reports whether the product is saved.
func (s *Store) IsInWishlist(productID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wishIndex(productID) >= 0
}

// Subtotal is the sum of price times quantity over all lines whose product resolves.
// Lines of unknown products contribute nothing.
func (s *Store) Subtotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, line := range s.lines {
		p, ok := s.resolver.ResolveProduct(line.ProductID)
		if !ok {
			continue
		}
		total += p.Price * int64(line.Quantity)
	}
	return total
}

// Add puts qty of a product into the cart, incrementing the line if it already exists.
func (s *Store) Add(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) (LineItem, error) {
	if qty < 1 || qty > syncqueue.MaxQuantity {
		return LineItem{}, perrors.ErrInvalidQuantity
	}

	s.mu.Lock()
	i := s.lineIndex(productID, variantID)
	creates := i < 0 && s.loaded
	if i >= 0 {
		if s.lines[i].Quantity > syncqueue.MaxQuantity-qty {
			s.mu.Unlock()
			return LineItem{}, fmt.Errorf("line would exceed %d items: %w", syncqueue.MaxQuantity, perrors.ErrInvalidQuantity)
		}
		s.lines[i].Quantity += qty
	} else {
		s.lines = append(s.lines, LineItem{
			ID:        uuid.New(),
			ProductID: productID,
			VariantID: cloneID(variantID),
			Quantity:  qty,
			Owner:     s.owner,
			AddedAt:   s.now(),
		})
		i = len(s.lines) - 1
	}
	line := s.lines[i]
	undo := func() { s.adjustLocked(productID, variantID, -qty) }

	if s.state == StateGuest {
		defer s.mu.Unlock()
		if err := s.persistGuestLocked(ctx); err != nil {
			undo()
			return LineItem{}, err
		}
		return line, nil
	}
	gen, owner, queueOnly := s.begin()
	s.mu.Unlock()

	op := s.newOp(syncqueue.KindCart, syncqueue.ActionAdd, owner, productID, variantID, qty)
	op.Creates = creates
	err := s.writeThrough(ctx, gen, queueOnly, change{
		op: op,
		remote: func(ctx context.Context) error {
			item, err := s.remote.AddCartItem(ctx, owner, productID, variantID, qty)
			if err != nil {
				return err
			}
			s.ifCurrent(gen, func() {
				if j := s.lineIndex(productID, variantID); j >= 0 {
					s.lines[j].ID = item.ID
					s.lines[j].Quantity = item.Quantity
					line = s.lines[j]
				}
			})
			return nil
		},
		rollback: undo,
	})
	if err != nil {
		return LineItem{}, err
	}
	return line, nil
}

// Remove deletes a line from the cart.
func (s *Store) Remove(ctx context.Context, lineID uuid.UUID) error {
	s.mu.Lock()
	i := s.lineIndexByID(lineID)
	if i < 0 {
		s.mu.Unlock()
		return perrors.ErrLineNotFound
	}
	removed := s.lines[i]
	s.lines = slices.Delete(s.lines, i, i+1)
	undo := func() { s.restoreLocked(removed) }

	if s.state == StateGuest {
		defer s.mu.Unlock()
		if err := s.persistGuestLocked(ctx); err != nil {
			undo()
			return err
		}
		return nil
	}
	gen, owner, queueOnly := s.begin()
	s.mu.Unlock()

	return s.writeThrough(ctx, gen, queueOnly, change{
		op: s.newOp(syncqueue.KindCart, syncqueue.ActionRemove, owner, removed.ProductID, removed.VariantID, 0),
		remote: func(ctx context.Context) error {
			err := s.remote.RemoveCartItem(ctx, owner, removed.ProductID, removed.VariantID)
			if backend.KindOf(err) == backend.KindNotFound {
				return nil
			}
			return err
		},
		rollback: undo,
	})
}

// UpdateQuantity sets the quantity of a line. A quantity below 1 removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, lineID uuid.UUID, qty int32) (LineItem, error) {
	if qty < 1 {
		return LineItem{}, s.Remove(ctx, lineID)
	}
	if qty > syncqueue.MaxQuantity {
		return LineItem{}, perrors.ErrInvalidQuantity
	}

	s.mu.Lock()
	i := s.lineIndexByID(lineID)
	if i < 0 {
		s.mu.Unlock()
		return LineItem{}, perrors.ErrLineNotFound
	}
	prev := s.lines[i].Quantity
	s.lines[i].Quantity = qty
	line := s.lines[i]
	undo := func() {
		if j := s.lineIndex(line.ProductID, line.VariantID); j >= 0 {
			s.lines[j].Quantity = prev
		}
	}

	if s.state == StateGuest {
		defer s.mu.Unlock()
		if err := s.persistGuestLocked(ctx); err != nil {
			undo()
			return LineItem{}, err
		}
		return line, nil
	}
	gen, owner, queueOnly := s.begin()
	s.mu.Unlock()

	err := s.writeThrough(ctx, gen, queueOnly, change{
		op: s.newOp(syncqueue.KindCart, syncqueue.ActionSet, owner, line.ProductID, line.VariantID, qty),
		remote: func(ctx context.Context) error {
			item, err := s.remote.SetCartQuantity(ctx, owner, line.ProductID, line.VariantID, qty)
			if err != nil {
				return err
			}
			s.ifCurrent(gen, func() {
				if j := s.lineIndex(line.ProductID, line.VariantID); j >= 0 {
					s.lines[j].ID = item.ID
					line = s.lines[j]
				}
			})
			return nil
		},
		rollback: undo,
	})
	if err != nil {
		return LineItem{}, err
	}
	return line, nil
}

// ToggleWishlist saves the product, or removes it if already saved.
// Returns whether the product is saved afterwards.
func (s *Store) ToggleWishlist(ctx context.Context, productID uuid.UUID) (bool, error) {
	s.mu.Lock()
	var (
		added   bool
		creates bool
		undo    func()
	)
	if i := s.wishIndex(productID); i >= 0 {
		removed := s.wishlist[i]
		s.wishlist = slices.Delete(s.wishlist, i, i+1)
		undo = func() {
			if s.wishIndex(productID) < 0 {
				s.wishlist = append(s.wishlist, removed)
			}
		}
	} else {
		added = true
		creates = s.loaded
		s.wishlist = append(s.wishlist, WishlistEntry{ProductID: productID, Owner: s.owner, CreatedAt: s.now()})
		undo = func() {
			if j := s.wishIndex(productID); j >= 0 {
				s.wishlist = slices.Delete(s.wishlist, j, j+1)
			}
		}
	}

	if s.state == StateGuest {
		defer s.mu.Unlock()
		if err := s.persistGuestLocked(ctx); err != nil {
			undo()
			return !added, err
		}
		return added, nil
	}
	gen, owner, queueOnly := s.begin()
	s.mu.Unlock()

	action := syncqueue.ActionRemove
	remote := func(ctx context.Context) error { return s.remote.RemoveWishlist(ctx, owner, productID) }
	if added {
		action = syncqueue.ActionAdd
		remote = func(ctx context.Context) error { return s.remote.AddWishlist(ctx, owner, productID) }
	}
	op := s.newOp(syncqueue.KindWishlist, action, owner, productID, nil, 0)
	op.Creates = creates
	err := s.writeThrough(ctx, gen, queueOnly, change{
		op:       op,
		remote:   remote,
		rollback: undo,
	})
	if err != nil {
		return !added, err
	}
	return added, nil
}

// change is a mutation of a signed-in session on its way to the backend.
type change struct {
	op       syncqueue.Operation
	remote   func(ctx context.Context) error
	// rollback reverts the optimistic update; called with s.mu held.
	rollback func()
}

// begin captures what a write-through needs. Callers hold s.mu.
func (s *Store) begin() (gen uint64, owner string, queueOnly bool) {
	s.revision++
	return s.generation, s.owner, s.state == StateMigrating
}

// writeThrough sends c to the backend when it is reachable and queues it otherwise.
// A change whose target already has queued operations is queued behind them, so the
// backend sees the changes of one record in order. A transient failure marks the backend
// offline; the reconnect that follows drains the queue.
func (s *Store) writeThrough(ctx context.Context, gen uint64, queueOnly bool, c change) error {
	if !queueOnly && s.conn.Online() && !s.queue.HasPending(c.op) {
		err := c.remote(ctx)
		if err == nil {
			return nil
		}
		if !backend.IsTransient(err) {
			s.reject(ctx, gen, c, err)
			return fmt.Errorf("%w: %w", perrors.ErrRejected, err)
		}
		s.logger.InfoContext(ctx, "backend unavailable, queueing change", "op", c.op.String(), "error", err)
		s.conn.Set(ctx, false)
	}

	if err := s.queue.Enqueue(ctx, c.op); err != nil {
		s.ifCurrent(gen, c.rollback)
		return fmt.Errorf("failed to queue change: %w", err)
	}
	return nil
}

// reject undoes a change the backend refused and tells the user.
func (s *Store) reject(ctx context.Context, gen uint64, c change, cause error) {
	s.ifCurrent(gen, c.rollback)
	s.logger.WarnContext(ctx, "change rejected by backend", "op", c.op.String(),
		"kind", backend.KindOf(cause).String(), "error", cause)
	n := notify.SyncFailure(s.session, syncqueue.Failure{Op: c.op, Reason: "rejected by backend", Err: cause})
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.ErrorContext(ctx, "failed to deliver notification", "error", err)
	}
}

// ifCurrent runs fn under s.mu unless the session changed generation since gen.
func (s *Store) ifCurrent(gen uint64, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		s.logger.Debug("discarding stale backend response", "generation", gen, "current", s.generation)
		return
	}
	fn()
}

func (s *Store) newOp(kind syncqueue.Kind, action syncqueue.Action, owner string, productID uuid.UUID, variantID *uuid.UUID, qty int32) syncqueue.Operation {
	return syncqueue.Operation{
		ID:        uuid.New(),
		Kind:      kind,
		Action:    action,
		Owner:     owner,
		ProductID: productID,
		VariantID: cloneID(variantID),
		Quantity:  qty,
		CreatedAt: s.now(),
	}
}

func (s *Store) persistGuestLocked(ctx context.Context) error {
	doc := guestDocument{Lines: s.lines, Wishlist: s.wishlist, UpdatedAt: s.now()}
	if err := kv.SetJSON(ctx, s.kv, guestKey(s.session), doc); err != nil {
		return fmt.Errorf("failed to save guest cart: %w", err)
	}
	return nil
}

func (s *Store) lineIndex(productID uuid.UUID, variantID *uuid.UUID) int {
	return slices.IndexFunc(s.lines, func(l LineItem) bool { return l.matches(productID, variantID) })
}

func (s *Store) lineIndexByID(id uuid.UUID) int {
	return slices.IndexFunc(s.lines, func(l LineItem) bool { return l.ID == id })
}

func (s *Store) wishIndex(productID uuid.UUID) int {
	return slices.IndexFunc(s.wishlist, func(w WishlistEntry) bool { return w.ProductID == productID })
}

// adjustLocked changes a line quantity by delta, dropping the line below 1.
func (s *Store) adjustLocked(productID uuid.UUID, variantID *uuid.UUID, delta int32) {
	i := s.lineIndex(productID, variantID)
	if i < 0 {
		return
	}
	s.lines[i].Quantity += delta
	if s.lines[i].Quantity < 1 {
		s.lines = slices.Delete(s.lines, i, i+1)
	}
}

// restoreLocked puts a removed line back, merging with a line re-added meanwhile.
func (s *Store) restoreLocked(line LineItem) {
	if i := s.lineIndex(line.ProductID, line.VariantID); i >= 0 {
		s.lines[i].Quantity += line.Quantity
		return
	}
	s.lines = append(s.lines, line)
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
