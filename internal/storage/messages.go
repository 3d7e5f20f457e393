package storage

// Notification topics.
const (
	TopicDataStore = "storage.datastore.remove"
	TopicConsumer  = "storage.consumer.remove"
)

// DataStoreCacheItem asks every process to drop the cached stores of a
// tenant. TenantID holds the tenant path.
type DataStoreCacheItem struct {
	TenantID string `json:"tenant_id"`
	Module   string `json:"module"`
}

// ConsumerCacheItem reports that the named consumer changed for a tenant.
type ConsumerCacheItem struct {
	TenantID int    `json:"tenant_id"`
	Name     string `json:"name"`
}
