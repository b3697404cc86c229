// Package influxstorage implements the storage.Backend interface on InfluxDB v2.
// Every record becomes a point; when the server cannot be reached the points
// are written as gzipped line protocol to a backup file instead.
package influxstorage

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Softhook/elite-sub000/internal/config"
	"github.com/Softhook/elite-sub000/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// Measurement names written by the backend.
const (
	MeasurementSession    = "session"
	MeasurementDescriptor = "descriptor"
	MeasurementEvent      = "stream_event"
	MeasurementTick       = "stream_tick"
)

// retentionSeconds is applied to buckets created by the backend.
const retentionSeconds = 60 * 60 * 24 * 90 // 90 days

const pingTimeout = 5 * time.Second

// Backend writes session records to InfluxDB or a gzip backup file.
type Backend struct {
	cfg config.InfluxConfig
	log zerolog.Logger

	client  influxdb2.Client
	writer  influxdb2_api.WriteAPI
	isValid bool

	backupPath   string
	backupFile   *os.File
	backupWriter *gzip.Writer

	mu        sync.Mutex
	session   string
	closeOnce sync.Once
}

// New creates an InfluxDB backend. No connection is made until Init.
func New(cfg config.InfluxConfig, log zerolog.Logger) *Backend {
	return &Backend{
		cfg: cfg,
		log: log,
	}
}

// URL returns the server address built from the configuration.
func (b *Backend) URL() string {
	return fmt.Sprintf("%s://%s:%s", b.cfg.Protocol, b.cfg.Host, b.cfg.Port)
}

// Init connects to the server, falling back to the backup file when it is
// not configured or does not answer a ping.
func (b *Backend) Init() error {
	if b.cfg.Host != "" {
		b.client = influxdb2.NewClientWithOptions(
			b.URL(),
			b.cfg.Token,
			influxdb2.DefaultOptions().
				SetBatchSize(2500).
				SetFlushInterval(1000),
		)

		// validate client connection health
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		running, err := b.client.Ping(ctx)
		cancel()
		b.isValid = err == nil && running
	}

	if !b.isValid {
		b.log.Warn().Str("url", b.URL()).Msg("InfluxDB not reachable, writing to backup file")
		return b.openBackup()
	}

	if err := b.setupOrganizationAndBucket(); err != nil {
		return err
	}
	b.createWriter()
	b.log.Info().Str("bucket", b.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

// Valid reports whether points go to the server rather than the backup file.
func (b *Backend) Valid() bool {
	return b.isValid
}

func (b *Backend) openBackup() error {
	dir := b.cfg.BackupDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating backup directory: %w", err)
	}

	b.backupPath = filepath.Join(dir, fmt.Sprintf("influx_backup_%s.lp.gz", time.Now().Format("20060102_150405")))
	file, err := os.OpenFile(b.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	b.backupFile = file
	b.backupWriter = gzip.NewWriter(file)
	return nil
}

func (b *Backend) setupOrganizationAndBucket() error {
	ctx := context.Background()
	orgName := b.cfg.Org

	// ensure org exists
	influxOrg, err := b.client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		b.log.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = b.client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			b.log.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return fmt.Errorf("error creating organization %s: %w", orgName, err)
		}
	}

	if _, err = b.client.BucketsAPI().FindBucketByName(ctx, b.cfg.Bucket); err != nil {
		b.log.Info().Str("bucket", b.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = b.client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, b.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			b.log.Error().Err(err).Str("bucket", b.cfg.Bucket).Msg("Error creating bucket")
			return fmt.Errorf("error creating bucket %s: %w", b.cfg.Bucket, err)
		}
	}
	return nil
}

func (b *Backend) createWriter() {
	b.writer = b.client.WriteAPI(b.cfg.Org, b.cfg.Bucket)

	errorsCh := b.writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			b.log.Error().Err(writeErr).Str("bucket", b.cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}()
}

// Close flushes pending points and releases the client or backup file.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.writer != nil {
			b.writer.Flush()
		}
		if b.client != nil {
			b.client.Close()
		}
		if b.backupWriter != nil {
			if cerr := b.backupWriter.Close(); cerr != nil {
				err = fmt.Errorf("error closing backup writer: %w", cerr)
			}
			if cerr := b.backupFile.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("error closing backup file: %w", cerr)
			}
		}
	})
	return err
}

// ExportedFilePath returns the backup file, empty when writing to the server.
func (b *Backend) ExportedFilePath() string {
	return b.backupPath
}

// WritePoint writes a point to InfluxDB or the backup file.
func (b *Backend) WritePoint(point *influxdb2_write.Point) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isValid {
		b.writer.WritePoint(point)
		return nil
	}

	if b.backupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if !strings.HasSuffix(lineProtocol, "\n") {
		lineProtocol += "\n"
	}
	if _, err := b.backupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

func (b *Backend) sessionTag() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// StartSession writes a session point tagged with the session UUID.
func (b *Backend) StartSession(s *core.Session, f *core.FieldInfo) error {
	b.mu.Lock()
	b.session = s.UUID
	b.mu.Unlock()

	return b.WritePoint(SessionPoint(s, f))
}

// EndSession pushes buffered points out.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.writer != nil {
		b.writer.Flush()
	}
	if b.backupWriter != nil {
		if err := b.backupWriter.Flush(); err != nil {
			return fmt.Errorf("error flushing backup file: %w", err)
		}
	}
	return nil
}

// AddDescriptors writes one point per descriptor.
func (b *Backend) AddDescriptors(ds []core.DescriptorInfo) error {
	session := b.sessionTag()
	for _, d := range ds {
		if err := b.WritePoint(DescriptorPoint(session, d)); err != nil {
			return err
		}
	}
	return nil
}

// RecordActivation writes an activation event point.
func (b *Backend) RecordActivation(a *core.Activation) error {
	p := EventPoint(b.sessionTag(), core.EventActivated, a.DescriptorID, a.Tick, a.Time, a.Position)
	p.AddField("distance", a.Distance)
	p.AddField("diameter", a.Diameter)
	return b.WritePoint(p)
}

// RecordDeactivation writes a deactivation event point.
func (b *Backend) RecordDeactivation(d *core.Deactivation) error {
	p := EventPoint(b.sessionTag(), core.EventDeactivated, d.DescriptorID, d.Tick, d.Time, d.Position)
	p.AddField("distance", d.Distance)
	return b.WritePoint(p)
}

// RecordDestruction writes a destruction event point.
func (b *Backend) RecordDestruction(d *core.Destruction) error {
	p := EventPoint(b.sessionTag(), core.EventDestroyed, d.DescriptorID, d.Tick, d.Time, d.Position)
	p.AddField("diameter", d.Diameter)
	p.AddField("value", d.Value)
	return b.WritePoint(p)
}

// RecordTickStats writes a tick summary point.
func (b *Backend) RecordTickStats(s *core.TickStats) error {
	return b.WritePoint(TickPoint(b.sessionTag(), s))
}

// SessionPoint builds the point written at session start.
func SessionPoint(s *core.Session, f *core.FieldInfo) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementSession,
		map[string]string{
			"session":  s.UUID,
			"category": string(f.Category),
		},
		map[string]interface{}{
			"name":                s.Name,
			"seed":                strconv.FormatUint(s.Seed, 10),
			"version":             s.Version,
			"center_x":            f.Center.X,
			"center_y":            f.Center.Y,
			"radius":              f.Radius,
			"density":             f.Density,
			"activation_distance": f.ActivationDistance,
			"max_active":          f.MaxActive,
			"descriptors":         f.Descriptors,
		},
		s.StartTime,
	)
}

// DescriptorPoint builds the point describing one descriptor.
func DescriptorPoint(session string, d core.DescriptorInfo) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementDescriptor,
		map[string]string{"session": session},
		map[string]interface{}{
			"descriptor_id": d.ID,
			"anchor_x":      d.Anchor.X,
			"anchor_y":      d.Anchor.Y,
			"angle":         d.Angle,
			"spin":          d.Spin,
			"diameter":      d.Diameter,
			"velocity_x":    d.Velocity.X,
			"velocity_y":    d.Velocity.Y,
		},
		time.Now(),
	)
}

// EventPoint builds the common part of an event point; callers add
// kind-specific fields.
func EventPoint(session string, kind core.EventKind, id int, tick uint64, ts time.Time, pos core.Vec2) *influxdb2_write.Point {
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2_write.NewPoint(
		MeasurementEvent,
		map[string]string{
			"session": session,
			"kind":    string(kind),
		},
		map[string]interface{}{
			"descriptor_id": id,
			"tick":          tick,
			"x":             pos.X,
			"y":             pos.Y,
		},
		ts,
	)
}

// TickPoint builds the point summarising one tick.
func TickPoint(session string, s *core.TickStats) *influxdb2_write.Point {
	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	p := influxdb2_write.NewPoint(
		MeasurementTick,
		map[string]string{"session": session},
		map[string]interface{}{
			"tick":        s.Tick,
			"active":      s.Active,
			"activated":   s.Activated,
			"deactivated": s.Deactivated,
			"destroyed":   s.Destroyed,
			"duration_us": s.Duration.Microseconds(),
		},
		ts,
	)
	if s.Observer != nil {
		p.AddField("observer_x", s.Observer.X)
		p.AddField("observer_y", s.Observer.Y)
	}
	return p
}
