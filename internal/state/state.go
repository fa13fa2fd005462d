// Package state provides the read/write façade between transaction handlers
// and the ledger collaborator. Reads are batched per call; writes accumulate
// in the transaction's buffer and land in a single SetState once every
// validation rule has passed.
package state

import (
	"context"
	"log/slog"

	"aclchain/internal/codec"
	"aclchain/pkg/addressing"
	"aclchain/pkg/domain"
)

// Reader fetches raw entries for a batch of addresses. Missing addresses are
// simply absent from the result.
type Reader interface {
	GetState(ctx context.Context, addresses []string) (map[string][]byte, error)
}

// Writer persists a batch of entries atomically with respect to the enclosing
// transaction.
type Writer interface {
	SetState(ctx context.Context, entries map[string][]byte) error
}

// Context is the per-transaction state view handed to handlers. It caches
// reads, serves reads from pending writes so a handler observes its own
// mutations, and never touches the Writer itself; the dispatcher flushes the
// buffer after the handler succeeds.
type Context struct {
	reader Reader
	logger *slog.Logger
	cache  map[string][]byte
	writes map[string][]byte
}

// NewContext builds a state context over the given reader.
func NewContext(reader Reader, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		reader: reader,
		logger: logger,
		cache:  make(map[string][]byte),
		writes: make(map[string][]byte),
	}
}

// GetRaw returns the raw entries at the requested addresses, consulting
// pending writes first, then the read cache, then the ledger. Absent
// addresses are omitted from the result.
func (c *Context) GetRaw(ctx context.Context, addresses []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(addresses))
	var misses []string
	for _, addr := range addresses {
		if data, ok := c.writes[addr]; ok {
			result[addr] = data
			continue
		}
		if data, ok := c.cache[addr]; ok {
			if data != nil {
				result[addr] = data
			}
			continue
		}
		misses = append(misses, addr)
	}
	if len(misses) > 0 {
		fetched, err := c.reader.GetState(ctx, misses)
		if err != nil {
			return nil, err
		}
		for _, addr := range misses {
			data, ok := fetched[addr]
			if ok {
				c.cache[addr] = data
				result[addr] = data
			} else {
				// Negative entries are cached as nil so a re-read
				// of a missing address stays one round trip.
				c.cache[addr] = nil
			}
		}
	}
	return result, nil
}

// SetRaw buffers an entry for the final write.
func (c *Context) SetRaw(addr string, data []byte) {
	c.writes[addr] = data
}

// Writes returns a copy of the buffered entries.
func (c *Context) Writes() map[string][]byte {
	out := make(map[string][]byte, len(c.writes))
	for addr, data := range c.writes {
		out[addr] = data
	}
	return out
}

// Flush issues the single SetState call carrying every buffered entry.
// Flushing an empty buffer is a no-op.
func (c *Context) Flush(ctx context.Context, writer Writer) error {
	if len(c.writes) == 0 {
		return nil
	}
	return writer.SetState(ctx, c.Writes())
}

// pickFirst returns the first record satisfying match. More than one match at
// a single address means logically distinct entities collided on the hash; the
// container design tolerates this, so we log and proceed with the first.
func pickFirst[T any](logger *slog.Logger, addr string, records []T, match func(T) bool) (T, bool) {
	var (
		found T
		count int
	)
	for _, record := range records {
		if match(record) {
			if count == 0 {
				found = record
			}
			count++
		}
	}
	if count > 1 {
		logger.Warn("multiple records match at address, using first",
			"address", addr, "matches", count)
	}
	return found, count > 0
}

// FetchUser resolves a user by id.
func (c *Context) FetchUser(ctx context.Context, userID string) (domain.User, bool, error) {
	addr := addressing.User(userID)
	entries, err := c.GetRaw(ctx, []string{addr})
	if err != nil {
		return domain.User{}, false, err
	}
	var container domain.UserContainer
	if err := codec.Decode(addr, entries[addr], &container); err != nil {
		return domain.User{}, false, err
	}
	user, ok := pickFirst(c.logger, addr, container.Users, func(u domain.User) bool {
		return u.UserID == userID
	})
	return user, ok, nil
}

// UsersExist batch-checks the given user ids in one read and returns the ids
// that do not resolve to an existing user, in input order.
func (c *Context) UsersExist(ctx context.Context, userIDs []string) ([]string, error) {
	addrs := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		addrs = append(addrs, addressing.User(id))
	}
	entries, err := c.GetRaw(ctx, addrs)
	if err != nil {
		return nil, err
	}
	var missing []string
	for i, id := range userIDs {
		addr := addrs[i]
		var container domain.UserContainer
		if err := codec.Decode(addr, entries[addr], &container); err != nil {
			return nil, err
		}
		if _, ok := pickFirst(c.logger, addr, container.Users, func(u domain.User) bool {
			return u.UserID == id
		}); !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// FetchRole resolves a role by id.
func (c *Context) FetchRole(ctx context.Context, roleID string) (domain.Role, bool, error) {
	addr := addressing.RoleAttributes(roleID)
	entries, err := c.GetRaw(ctx, []string{addr})
	if err != nil {
		return domain.Role{}, false, err
	}
	var container domain.RoleContainer
	if err := codec.Decode(addr, entries[addr], &container); err != nil {
		return domain.Role{}, false, err
	}
	role, ok := pickFirst(c.logger, addr, container.Roles, func(r domain.Role) bool {
		return r.RoleID == roleID
	})
	return role, ok, nil
}

// FetchTask resolves a task by id.
func (c *Context) FetchTask(ctx context.Context, taskID string) (domain.Task, bool, error) {
	addr := addressing.TaskAttributes(taskID)
	entries, err := c.GetRaw(ctx, []string{addr})
	if err != nil {
		return domain.Task{}, false, err
	}
	var container domain.TaskContainer
	if err := codec.Decode(addr, entries[addr], &container); err != nil {
		return domain.Task{}, false, err
	}
	task, ok := pickFirst(c.logger, addr, container.Tasks, func(t domain.Task) bool {
		return t.TaskID == taskID
	})
	return task, ok, nil
}

// HasRelationship reports whether relatedID holds the relationship stored at
// addr for objectID.
func (c *Context) HasRelationship(ctx context.Context, addr, objectID, relatedID string) (bool, error) {
	record, ok, err := c.FetchRelationship(ctx, addr, objectID)
	if err != nil || !ok {
		return false, err
	}
	return record.HasIdentifier(relatedID), nil
}

// FetchRelationship returns the relationship record owned by objectID at addr.
func (c *Context) FetchRelationship(ctx context.Context, addr, objectID string) (domain.RelationshipRecord, bool, error) {
	entries, err := c.GetRaw(ctx, []string{addr})
	if err != nil {
		return domain.RelationshipRecord{}, false, err
	}
	var container domain.RelationshipContainer
	if err := codec.Decode(addr, entries[addr], &container); err != nil {
		return domain.RelationshipRecord{}, false, err
	}
	record, ok := pickFirst(c.logger, addr, container.Records, func(r domain.RelationshipRecord) bool {
		return r.ObjectID == objectID
	})
	return record, ok, nil
}

// FetchProposals returns the full proposal container at addr.
func (c *Context) FetchProposals(ctx context.Context, addr string) (domain.ProposalContainer, error) {
	entries, err := c.GetRaw(ctx, []string{addr})
	if err != nil {
		return domain.ProposalContainer{}, err
	}
	var container domain.ProposalContainer
	if err := codec.Decode(addr, entries[addr], &container); err != nil {
		return domain.ProposalContainer{}, err
	}
	return container, nil
}

// AppendUser adds a user record to its attributes container.
func (c *Context) AppendUser(ctx context.Context, user domain.User) error {
	addr := addressing.User(user.UserID)
	entries, err := c.GetRaw(ctx, []string{addr})
	if err != nil {
		return err
	}
	var container domain.UserContainer
	if err := codec.Decode(addr, entries[addr], &container); err != nil {
		return err
	}
	container.Users = append(container.Users, user)
	return c.encodeAndSet(addr, container)
}

// StoreUser replaces the record for user.UserID inside its container,
// preserving unrelated colliding records.
func (c *Context) StoreUser(ctx context.Context, user domain.User) error {
	addr := addressing.User(user.UserID)
	entries, err := c.GetRaw(ctx, []string{addr})
	if err != nil {
		return err
	}
	var container domain.UserContainer
	if err := codec.Decode(addr, entries[addr], &container); err != nil {
		return err
	}
	replaced := false
	for i, existing := range container.Users {
		if existing.UserID == user.UserID {
			container.Users[i] = user
			replaced = true
			break
		}
	}
	if !replaced {
		container.Users = append(container.Users, user)
	}
	return c.encodeAndSet(addr, container)
}

// AppendRole adds a role record to its attributes container.
func (c *Context) AppendRole(ctx context.Context, role domain.Role) error {
	addr := addressing.RoleAttributes(role.RoleID)
	entries, err := c.GetRaw(ctx, []string{addr})
	if err != nil {
		return err
	}
	var container domain.RoleContainer
	if err := codec.Decode(addr, entries[addr], &container); err != nil {
		return err
	}
	container.Roles = append(container.Roles, role)
	return c.encodeAndSet(addr, container)
}

// AppendTask adds a task record to its attributes container.
func (c *Context) AppendTask(ctx context.Context, task domain.Task) error {
	addr := addressing.TaskAttributes(task.TaskID)
	entries, err := c.GetRaw(ctx, []string{addr})
	if err != nil {
		return err
	}
	var container domain.TaskContainer
	if err := codec.Decode(addr, entries[addr], &container); err != nil {
		return err
	}
	container.Tasks = append(container.Tasks, task)
	return c.encodeAndSet(addr, container)
}

// AddIdentifier appends relatedID to the relationship record owned by
// objectID at addr, creating the record if absent. Adding an identifier that
// is already present is an invariant break reported by the caller's own
// precondition check; this helper keeps the set semantics regardless.
func (c *Context) AddIdentifier(ctx context.Context, addr, objectID, relatedID string) error {
	entries, err := c.GetRaw(ctx, []string{addr})
	if err != nil {
		return err
	}
	var container domain.RelationshipContainer
	if err := codec.Decode(addr, entries[addr], &container); err != nil {
		return err
	}
	updated := false
	for i, record := range container.Records {
		if record.ObjectID != objectID {
			continue
		}
		if !record.HasIdentifier(relatedID) {
			container.Records[i].Identifiers = append(record.Identifiers, relatedID)
		}
		updated = true
		break
	}
	if !updated {
		container.Records = append(container.Records, domain.RelationshipRecord{
			ObjectID:    objectID,
			Identifiers: []string{relatedID},
		})
	}
	return c.encodeAndSet(addr, container)
}

// RemoveIdentifier deletes relatedID from the relationship record owned by
// objectID at addr. Removing an absent identifier leaves the record unchanged.
func (c *Context) RemoveIdentifier(ctx context.Context, addr, objectID, relatedID string) error {
	entries, err := c.GetRaw(ctx, []string{addr})
	if err != nil {
		return err
	}
	var container domain.RelationshipContainer
	if err := codec.Decode(addr, entries[addr], &container); err != nil {
		return err
	}
	for i, record := range container.Records {
		if record.ObjectID != objectID {
			continue
		}
		kept := record.Identifiers[:0]
		for _, id := range record.Identifiers {
			if id != relatedID {
				kept = append(kept, id)
			}
		}
		container.Records[i].Identifiers = kept
		break
	}
	return c.encodeAndSet(addr, container)
}

// StoreProposals replaces the proposal container at addr.
func (c *Context) StoreProposals(addr string, container domain.ProposalContainer) error {
	return c.encodeAndSet(addr, container)
}

func (c *Context) encodeAndSet(addr string, container any) error {
	data, err := codec.Encode(container)
	if err != nil {
		return err
	}
	c.SetRaw(addr, data)
	return nil
}
