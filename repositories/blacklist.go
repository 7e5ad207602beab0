package repositories

import (
	"github.com/dgraph-io/badger/v4"
)

const blacklistKeyPrefix = "blacklist:"

// BlacklistRepository stores the moderation word list. Words live in the
// keys themselves; values stay empty.
type BlacklistRepository struct {
	db *badger.DB
}

func NewBlacklistRepository(db *badger.DB) *BlacklistRepository {
	return &BlacklistRepository{db: db}
}

func (r *BlacklistRepository) Add(words ...string) error {
	wb := r.db.NewWriteBatch()
	defer wb.Cancel()
	for _, word := range words {
		if err := wb.Set([]byte(blacklistKeyPrefix+word), nil); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Words loads the full list, once, at startup.
func (r *BlacklistRepository) Words() ([]string, error) {
	var words []string
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(blacklistKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			words = append(words, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return words, nil
}
