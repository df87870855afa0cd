package cart

import (
	"context"
	"fmt"
	"slices"

	"github.com/abgdnv/bazaar/internal/backend"
	perrors "github.com/abgdnv/bazaar/internal/errors"
	"github.com/abgdnv/bazaar/internal/kv"
	"github.com/abgdnv/bazaar/internal/syncqueue"
	"github.com/google/uuid"
)

// SignIn moves the guest cart and wishlist to userID and switches the session to
// authenticated. Each guest item is written to the backend or, if that fails, queued, so
// no item is lost. The guest document is then cleared and the view reloaded from the
// backend with queued changes applied on top.
// Returns ErrInvalidTransition unless the session is a guest.
func (s *Store) SignIn(ctx context.Context, userID string) error {
	if userID == "" || userID == GuestOwner {
		return fmt.Errorf("invalid user id %q: %w", userID, perrors.ErrValidation)
	}

	s.mu.Lock()
	if s.state != StateGuest {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("sign in while %s: %w", state, perrors.ErrInvalidTransition)
	}
	s.state = StateMigrating
	s.owner = userID
	s.generation++
	s.revision++
	gen := s.generation
	lines := slices.Clone(s.lines)
	wishlist := slices.Clone(s.wishlist)
	s.mu.Unlock()

	queued, err := s.migrate(ctx, userID, lines, wishlist)
	if err != nil {
		s.mu.Lock()
		if s.generation == gen {
			s.state = StateGuest
			s.owner = GuestOwner
			s.generation++
		}
		s.mu.Unlock()
		return err
	}

	if err := s.kv.Delete(ctx, guestKey(s.session)); err != nil {
		s.logger.WarnContext(ctx, "failed to clear guest cart", "error", err)
	}
	if err := kv.SetJSON(ctx, s.kv, sessionKey(s.session), sessionDocument{Owner: userID}); err != nil {
		s.logger.WarnContext(ctx, "failed to save session", "error", err)
	}

	remoteLines, remoteWishlist, loaded, err := s.fetch(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "signed in without backend data", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return fmt.Errorf("session changed during sign in: %w", perrors.ErrInvalidTransition)
	}
	s.lines, s.wishlist = s.overlayQueued(userID, remoteLines, remoteWishlist)
	s.loaded = loaded
	s.state = StateAuthenticated
	s.logger.InfoContext(ctx, "session signed in", "user_id", userID,
		"lines", len(lines), "wishlist", len(wishlist), "queued", queued)
	return nil
}

// migrate writes guest items to the backend for userID and returns how many were queued.
func (s *Store) migrate(ctx context.Context, userID string, lines []LineItem, wishlist []WishlistEntry) (int, error) {
	online := s.conn.Online()
	queued := 0

	push := func(op syncqueue.Operation, remote func() error) error {
		if online {
			err := remote()
			if err == nil {
				return nil
			}
			if backend.IsTransient(err) {
				online = false
				s.conn.Set(ctx, false)
			}
			s.logger.WarnContext(ctx, "guest item not migrated, queueing", "op", op.String(), "error", err)
		}
		if err := s.queue.Enqueue(ctx, op); err != nil {
			return fmt.Errorf("failed to queue guest item: %w", err)
		}
		queued++
		return nil
	}

	for _, line := range lines {
		op := s.newOp(syncqueue.KindCart, syncqueue.ActionAdd, userID, line.ProductID, line.VariantID, line.Quantity)
		err := push(op, func() error {
			_, err := s.remote.AddCartItem(ctx, userID, line.ProductID, line.VariantID, line.Quantity)
			return err
		})
		if err != nil {
			return queued, err
		}
	}
	for _, entry := range wishlist {
		op := s.newOp(syncqueue.KindWishlist, syncqueue.ActionAdd, userID, entry.ProductID, nil, 0)
		err := push(op, func() error {
			return s.remote.AddWishlist(ctx, userID, entry.ProductID)
		})
		if err != nil {
			return queued, err
		}
	}
	return queued, nil
}

// SignOut returns the session to guest. Backend data is left untouched and the view starts empty.
// Returns ErrInvalidTransition unless the session is authenticated.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateAuthenticated {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("sign out while %s: %w", state, perrors.ErrInvalidTransition)
	}
	owner := s.owner
	s.state = StateGuest
	s.owner = GuestOwner
	s.generation++
	s.revision++
	s.lines = nil
	s.wishlist = nil
	s.loaded = false
	s.mu.Unlock()

	if err := s.kv.Delete(ctx, sessionKey(s.session)); err != nil {
		s.logger.WarnContext(ctx, "failed to clear session", "error", err)
	}
	s.logger.InfoContext(ctx, "session signed out", "user_id", owner)
	return nil
}

// Refresh reloads a signed-in view from the backend, keeping queued changes on top.
// It does nothing for guests, while offline, or when a local change raced the reload.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateAuthenticated {
		s.mu.Unlock()
		return nil
	}
	gen, rev, owner := s.generation, s.revision, s.owner
	s.mu.Unlock()

	if !s.conn.Online() {
		return nil
	}
	lines, wishlist, loaded, err := s.fetch(ctx, owner)
	if err != nil || !loaded {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.revision != rev {
		return nil
	}
	s.lines, s.wishlist = s.overlayQueued(owner, lines, wishlist)
	s.loaded = true
	return nil
}

// Sync replays queued changes and reloads the view. It runs when connectivity returns.
func (s *Store) Sync(ctx context.Context) (syncqueue.DrainResult, error) {
	res, err := s.queue.DrainOnReconnect(ctx, syncqueue.BackendReplayer{Backend: s.remote})
	if err != nil {
		return res, err
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to refresh after sync", "error", err)
	}
	return res, nil
}

// fetch loads the backend view of owner. loaded is false when the backend was not asked.
func (s *Store) fetch(ctx context.Context, owner string) (lines []LineItem, wishlist []WishlistEntry, loaded bool, err error) {
	if !s.conn.Online() {
		return nil, nil, false, nil
	}
	items, err := s.remote.ListCart(ctx, owner)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to load cart: %w", err)
	}
	saved, err := s.remote.ListWishlist(ctx, owner)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to load wishlist: %w", err)
	}

	lines = make([]LineItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, LineItem{
			ID:        it.ID,
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			Owner:     owner,
			AddedAt:   it.CreatedAt,
		})
	}
	wishlist = make([]WishlistEntry, 0, len(saved))
	for _, w := range saved {
		wishlist = append(wishlist, WishlistEntry{ProductID: w.ProductID, Owner: owner, CreatedAt: w.CreatedAt})
	}
	return lines, wishlist, true, nil
}

// overlayQueued applies the pending operations of owner to a backend view.
func (s *Store) overlayQueued(owner string, lines []LineItem, wishlist []WishlistEntry) ([]LineItem, []WishlistEntry) {
	for _, op := range s.queue.Pending() {
		if op.Owner != owner {
			continue
		}
		switch op.Kind {
		case syncqueue.KindCart:
			i := slices.IndexFunc(lines, func(l LineItem) bool { return l.matches(op.ProductID, op.VariantID) })
			switch {
			case op.Action == syncqueue.ActionRemove:
				if i >= 0 {
					lines = slices.Delete(lines, i, i+1)
				}
			case i >= 0 && op.Action == syncqueue.ActionAdd:
				lines[i].Quantity += op.Quantity
			case i >= 0 && op.Action == syncqueue.ActionSet:
				lines[i].Quantity = op.Quantity
			case i < 0:
				lines = append(lines, LineItem{
					ID:        uuid.New(),
					ProductID: op.ProductID,
					VariantID: cloneID(op.VariantID),
					Quantity:  op.Quantity,
					Owner:     owner,
					AddedAt:   op.CreatedAt,
				})
			}
		case syncqueue.KindWishlist:
			i := slices.IndexFunc(wishlist, func(w WishlistEntry) bool { return w.ProductID == op.ProductID })
			switch {
			case op.Action == syncqueue.ActionRemove && i >= 0:
				wishlist = slices.Delete(wishlist, i, i+1)
			case op.Action == syncqueue.ActionAdd && i < 0:
				wishlist = append(wishlist, WishlistEntry{ProductID: op.ProductID, Owner: owner, CreatedAt: op.CreatedAt})
			}
		}
	}
	return lines, wishlist
}
