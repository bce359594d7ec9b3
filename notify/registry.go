// Package notify keeps per-client item subscriptions and matches them
// against stock snapshots.
package notify

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/gagstock/stock/inventory"
)

// MaxItemLen bounds a subscribed item name.
const MaxItemLen = 64

// Subscription is one client's notification settings.
type Subscription struct {
	Items   []string `json:"items"`
	Enabled bool     `json:"enabled"`
}

// Notification is one in-stock alert addressed to a client.
type Notification struct {
	ClientID string `json:"-"`
	Item     string `json:"item"`
	Message  string `json:"message"`
}

// Registry is a concurrency-safe map of client subscriptions.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	policy *bluemonday.Policy
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		subs:   make(map[string]*Subscription),
		policy: bluemonday.StrictPolicy(),
	}
}

// sanitize strips markup from a client-supplied item name. Items are echoed
// back to clients inside notification messages.
func (r *Registry) sanitize(item string) string {
	s := html.UnescapeString(r.policy.Sanitize(item))
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > MaxItemLen {
		s = string([]rune(s)[:MaxItemLen])
	}
	return s
}

func (r *Registry) cleanItems(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		s := r.sanitize(it)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Setup replaces the client's subscription.
func (r *Registry) Setup(clientID string, items []string, enabled bool) Subscription {
	sub := &Subscription{Items: r.cleanItems(items), Enabled: enabled}
	r.mu.Lock()
	r.subs[clientID] = sub
	r.mu.Unlock()
	return copySub(sub)
}

// Toggle switches notifications for an existing client. It reports
// whether the client had a subscription.
func (r *Registry) Toggle(clientID string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[clientID]
	if !ok {
		return false
	}
	sub.Enabled = enabled
	return true
}

// Add subscribes the client to item, creating an enabled subscription if
// none exists. Duplicates are ignored.
func (r *Registry) Add(clientID, item string) (Subscription, error) {
	s := r.sanitize(item)
	if s == "" {
		return Subscription{}, fmt.Errorf("notify: empty item")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[clientID]
	if !ok {
		sub = &Subscription{Enabled: true}
		r.subs[clientID] = sub
	}
	for _, it := range sub.Items {
		if it == s {
			return copySub(sub), nil
		}
	}
	sub.Items = append(sub.Items, s)
	return copySub(sub), nil
}

// Remove unsubscribes the client from item.
func (r *Registry) Remove(clientID, item string) Subscription {
	s := r.sanitize(item)
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[clientID]
	if !ok {
		return Subscription{}
	}
	kept := sub.Items[:0]
	for _, it := range sub.Items {
		if it != s {
			kept = append(kept, it)
		}
	}
	sub.Items = kept
	return copySub(sub)
}

// Delete forgets the client.
func (r *Registry) Delete(clientID string) {
	r.mu.Lock()
	delete(r.subs, clientID)
	r.mu.Unlock()
}

// Get returns the client's subscription.
func (r *Registry) Get(clientID string) (Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[clientID]
	if !ok {
		return Subscription{}, false
	}
	return copySub(sub), true
}

// Stats returns the number of clients with a subscription and the
// distinct subscribed items, sorted.
func (r *Registry) Stats() (clients int, items []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := make(map[string]bool)
	for _, sub := range r.subs {
		for _, it := range sub.Items {
			set[strings.ToLower(it)] = true
		}
	}
	items = make([]string, 0, len(set))
	for it := range set {
		items = append(items, it)
	}
	sort.Strings(items)
	return len(r.subs), items
}

// Match returns one notification per enabled client and subscribed item
// that appears, case-insensitively as a substring, in any record name.
func (r *Registry) Match(snap inventory.Snapshot) []Notification {
	names := snap.Names()
	for i, n := range names {
		names[i] = strings.ToLower(n)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Notification
	for id, sub := range r.subs {
		if !sub.Enabled {
			continue
		}
		for _, item := range sub.Items {
			needle := strings.ToLower(item)
			for _, n := range names {
				if strings.Contains(n, needle) {
					out = append(out, Notification{
						ClientID: id,
						Item:     item,
						Message:  item + " is now in stock!",
					})
					break
				}
			}
		}
	}
	return out
}

func copySub(s *Subscription) Subscription {
	return Subscription{Items: append([]string{}, s.Items...), Enabled: s.Enabled}
}
