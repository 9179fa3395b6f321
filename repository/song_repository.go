package repository

import (
	"context"
	"errors"
	"fmt"

	"stemset/model"

	"gorm.io/gorm"
)

// ErrSongNotFound is returned when a song ID does not exist.
var ErrSongNotFound = errors.New("song not found")

// SongRepository defines the interface for song metadata operations.
type SongRepository interface {
	CreateSong(ctx context.Context, song *model.Song) error
	GetSongByID(ctx context.Context, id string) (*model.Song, error)
	// GetSongsByUserID returns the user's songs ordered by upload time,
	// newest first.
	GetSongsByUserID(ctx context.Context, userID int64) ([]*model.Song, error)
	UpdateSong(ctx context.Context, song *model.Song) error
	UpdateSongStatus(ctx context.Context, id string, status string) error
	// SetSongStems records the outcome of a separation job in one write.
	SetSongStems(ctx context.Context, id string, stems model.StemMap, status string, degraded bool) error
	DeleteSong(ctx context.Context, id string) error
}

// gormSongRepository implements SongRepository on GORM.
type gormSongRepository struct {
	db *gorm.DB
}

// NewGormSongRepository creates a new instance of gormSongRepository.
func NewGormSongRepository(db *gorm.DB) SongRepository {
	return &gormSongRepository{db: db}
}

func (r *gormSongRepository) CreateSong(ctx context.Context, song *model.Song) error {
	if err := r.db.WithContext(ctx).Create(song).Error; err != nil {
		return fmt.Errorf("failed to create song %s: %w", song.ID, err)
	}
	return nil
}

func (r *gormSongRepository) GetSongByID(ctx context.Context, id string) (*model.Song, error) {
	var song model.Song
	err := r.db.WithContext(ctx).First(&song, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSongNotFound
		}
		return nil, fmt.Errorf("failed to query song %s: %w", id, err)
	}
	return &song, nil
}

func (r *gormSongRepository) GetSongsByUserID(ctx context.Context, userID int64) ([]*model.Song, error) {
	var songs []*model.Song
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("uploaded_at DESC").
		Find(&songs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query songs for user %d: %w", userID, err)
	}
	return songs, nil
}

func (r *gormSongRepository) UpdateSong(ctx context.Context, song *model.Song) error {
	if err := r.db.WithContext(ctx).Save(song).Error; err != nil {
		return fmt.Errorf("failed to update song %s: %w", song.ID, err)
	}
	return nil
}

func (r *gormSongRepository) UpdateSongStatus(ctx context.Context, id string, status string) error {
	res := r.db.WithContext(ctx).Model(&model.Song{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update status for song %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSongNotFound
	}
	return nil
}

func (r *gormSongRepository) SetSongStems(ctx context.Context, id string, stems model.StemMap, status string, degraded bool) error {
	res := r.db.WithContext(ctx).Model(&model.Song{}).Where("id = ?", id).Updates(map[string]interface{}{
		"stems":    stems,
		"status":   status,
		"degraded": degraded,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to set stems for song %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSongNotFound
	}
	return nil
}

func (r *gormSongRepository) DeleteSong(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&model.Song{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete song %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSongNotFound
	}
	return nil
}
