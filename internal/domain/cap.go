package domain

import "time"

// Cap описывает физическую крышку в каталоге.
// Ядро поиска читает только ID и ключ исходного изображения.
type Cap struct {
	ID         int64
	Name       string
	StorageKey string
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	IsArchived bool
}

func NewCap(name string, storageKey string) *Cap {
	return &Cap{
		Name:       name,
		StorageKey: storageKey,
	}
}
