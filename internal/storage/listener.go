package storage

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"docstore/internal/files"
	"docstore/internal/notify"
)

// Listener applies invalidation messages from other processes (and this
// one) to a Factory. Start it once after the factory is built and Stop it
// at shutdown.
type Listener struct {
	factory  *Factory
	notifier notify.Notifier
	logger   files.Logger

	mu          sync.Mutex
	unsubscribe []func()
}

func NewListener(factory *Factory, notifier notify.Notifier, logger files.Logger) *Listener {
	return &Listener{factory: factory, notifier: notifier, logger: logger}
}

func (l *Listener) Start() error {
	unsubStore, err := l.notifier.Subscribe(TopicDataStore, l.onDataStore)
	if err != nil {
		return err
	}
	unsubConsumer, err := l.notifier.Subscribe(TopicConsumer, l.onConsumer)
	if err != nil {
		unsubStore()
		return err
	}

	l.mu.Lock()
	l.unsubscribe = append(l.unsubscribe, unsubStore, unsubConsumer)
	l.mu.Unlock()
	return nil
}

func (l *Listener) Stop() {
	l.mu.Lock()
	subs := l.unsubscribe
	l.unsubscribe = nil
	l.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func (l *Listener) onDataStore(payload []byte) {
	var item DataStoreCacheItem
	if err := json.Unmarshal(payload, &item); err != nil {
		l.logger.Warn("bad datastore notification", "error", err)
		return
	}
	l.factory.EvictTenant(item.TenantID)
	if id, ok := tenantIDFromPath(item.TenantID); ok {
		l.factory.settings.Forget(id)
	}
}

// onConsumer resets the tenant to default storage when its selected
// consumer is the one that changed.
func (l *Listener) onConsumer(payload []byte) {
	var item ConsumerCacheItem
	if err := json.Unmarshal(payload, &item); err != nil {
		l.logger.Warn("bad consumer notification", "error", err)
		return
	}

	ctx := context.Background()
	settings, err := l.factory.settings.Load(ctx, item.TenantID)
	if err != nil {
		l.logger.Error("loading storage settings", "tenant", item.TenantID, "error", err)
		return
	}
	if settings.Module == "" || !strings.EqualFold(settings.Module, item.Name) {
		return
	}
	if err := l.factory.settings.Clear(ctx, item.TenantID); err != nil {
		l.logger.Error("clearing storage settings", "tenant", item.TenantID, "consumer", item.Name, "error", err)
		return
	}
	l.logger.Info("storage consumer changed, tenant reset to default", "tenant", item.TenantID, "consumer", item.Name)
}
