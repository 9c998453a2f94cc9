// Package storage records control sessions: runs and their frames in a
// local SQLite database through gorm, with an optional InfluxDB export.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/glebarez/sqlite"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrRunNotFound = errors.New("storage: run not found")

// Run is one recorded session.
type Run struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	Preset    string    `json:"preset"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	Cycles  uint64 `json:"cycles"`
	Skipped uint64 `json:"skipped"`
	Failed  uint64 `json:"failed"`
	Events  int    `json:"events"`
	Clicks  int    `json:"clicks"`

	// Path is the vehicle's ground track as a WKT LineString over (x, z).
	Path     string  `json:"path"`
	Distance float64 `json:"distance"`

	Metrics map[string]float64 `gorm:"serializer:json" json:"metrics"`
}

// FrameRecord is one control cycle of a run.
type FrameRecord struct {
	ID      uint      `gorm:"primaryKey" json:"-"`
	RunID   uint      `gorm:"index" json:"-"`
	Cycle   uint64    `json:"cycle"`
	At      time.Time `json:"at"`
	RawX    int       `json:"raw_x"`
	RawY    int       `json:"raw_y"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	Button  bool      `json:"button"`
	State   string    `json:"state"`
	Events  string    `json:"events"`
	Failed  bool      `json:"failed"`
	Errors  int       `json:"errors"`
	PosX    float64   `json:"pos_x"`
	PosY    float64   `json:"pos_y"`
	PosZ    float64   `json:"pos_z"`
	Speed   float64   `json:"speed"`
	Engine  float64   `json:"engine"`
	Steer   float64   `json:"steer"`
	Tracked bool      `json:"tracked"`
}

type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open opens or creates the database at path and migrates it.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        500,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Run{}, &FrameRecord{}); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	log = log.With().Str("component", "storage").Logger()
	log.Debug().Str("path", path).Msg("run store opened")
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateRun starts a new run.
func (s *Store) CreateRun(name, source, preset string, at time.Time) (*Run, error) {
	run := &Run{Name: name, Source: source, Preset: preset, StartedAt: at}
	if err := s.db.Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Store) AddFrames(runID uint, frames []FrameRecord) error {
	if len(frames) == 0 {
		return nil
	}
	for i := range frames {
		frames[i].RunID = runID
	}
	return s.db.CreateInBatches(frames, 500).Error
}

// FinishRun computes the ground track of the run from its frames and
// stores the final counters.
func (s *Store) FinishRun(run *Run) error {
	frames, err := s.LoadFrames(run.ID)
	if err != nil {
		return err
	}
	track := GroundTrack(frames)
	run.Path = track.AsText()
	run.Distance = track.Length()
	return s.db.Save(run).Error
}

// GroundTrack builds the (x, z) track of the tracked frames, dropping
// consecutive duplicate points.
func GroundTrack(frames []FrameRecord) geom.LineString {
	coords := make([]float64, 0, 2*len(frames))
	for _, f := range frames {
		if !f.Tracked {
			continue
		}
		n := len(coords)
		if n >= 2 && coords[n-2] == f.PosX && coords[n-1] == f.PosZ {
			continue
		}
		coords = append(coords, f.PosX, f.PosZ)
	}
	if len(coords) < 4 {
		return geom.LineString{}
	}
	return geom.NewLineString(geom.NewSequence(coords, geom.DimXY))
}

// ListRuns returns every run, newest first.
func (s *Store) ListRuns() ([]Run, error) {
	var runs []Run
	if err := s.db.Order("id desc").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *Store) LoadRun(id uint) (*Run, error) {
	var run Run
	err := s.db.First(&run, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// LoadFrames returns the frames of a run in cycle order.
func (s *Store) LoadFrames(id uint) ([]FrameRecord, error) {
	var frames []FrameRecord
	if err := s.db.Where("run_id = ?", id).Order("cycle").Find(&frames).Error; err != nil {
		return nil, err
	}
	return frames, nil
}

// DeleteRun removes a run and its frames.
func (s *Store) DeleteRun(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", id).Delete(&FrameRecord{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Run{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %d", ErrRunNotFound, id)
		}
		return nil
	})
}

type ExportData struct {
	Run    Run           `json:"run"`
	Frames []FrameRecord `json:"frames"`
}

func (s *Store) ExportJSON(w io.Writer, id uint) error {
	run, err := s.LoadRun(id)
	if err != nil {
		return err
	}
	frames, err := s.LoadFrames(id)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{Run: *run, Frames: frames})
}
