package converter

// CapInfoRedisModel — кэшируемое представление крышки.
type CapInfoRedisModel struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	StorageKey string `json:"storage_key"`
}
