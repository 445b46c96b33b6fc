package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
	sc "github.com/dmitrijs2005/cardkeeper/internal/server/config"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// S3 seams, replaced in tests.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Snapshot is the JSON document written by an export.
type Snapshot struct {
	OwnerID    string         `json:"owner_id"`
	Clid       int64          `json:"clid"`
	ExportedAt time.Time      `json:"exported_at"`
	Cards      []SnapshotCard `json:"cards"`
}

type SnapshotCard struct {
	ID         int64     `json:"cid"`
	Number     string    `json:"number"`
	Version    int64     `json:"version"`
	Content    string    `json:"content"`
	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
}

// ExportResult locates an uploaded snapshot.
type ExportResult struct {
	Key  string
	URL  string
	Clid int64
}

// ExportService writes snapshots of an owner's cards to object storage.
type ExportService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	now         func() time.Time
}

func NewExportService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config) *ExportService {
	return &ExportService{db: db, repomanager: m, config: cfg, now: time.Now}
}

// ExportKey builds the object key for a snapshot taken at t.
func ExportKey(ownerID string, t time.Time) string {
	return fmt.Sprintf("users/%s/exports/%04d/%02d/%02d/%v.json", ownerID, t.Year(), t.Month(), t.Day(), uuid.New())
}

// Export uploads every live card of ownerID together with the ledger head
// they correspond to, and returns a presigned download link.
func (s *ExportService) Export(ctx context.Context, ownerID string) (*ExportResult, error) {
	snap, err := s.snapshot(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}

	client, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}

	bucket := s.config.S3Bucket
	key := ExportKey(ownerID, snap.ExportedAt)

	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return nil, fmt.Errorf("error uploading export: %w", err)
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.ExportLinkValidity))
	if err != nil {
		return nil, fmt.Errorf("error presigning export: %w", err)
	}

	return &ExportResult{Key: key, URL: req.URL, Clid: snap.Clid}, nil
}

// snapshot reads cards and the ledger head from one repeatable-read
// transaction so the pair is consistent.
func (s *ExportService) snapshot(ctx context.Context, ownerID string) (*Snapshot, error) {
	snap := &Snapshot{OwnerID: ownerID, ExportedAt: s.now().UTC(), Cards: []SnapshotCard{}}

	err := dbx.WithTx(ctx, s.db, dbx.ReadOnlySnapshot, func(ctx context.Context, tx dbx.DBTX) error {
		head, err := s.repomanager.ChangeLog(tx).MaxPosition(ctx)
		if err != nil {
			return err
		}
		snap.Clid = head

		cards, err := s.repomanager.Cards(tx).ListAll(ctx, ownerID)
		if err != nil {
			return err
		}
		for _, c := range cards {
			snap.Cards = append(snap.Cards, toSnapshotCard(c))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func toSnapshotCard(c *models.Card) SnapshotCard {
	return SnapshotCard{
		ID:         c.ID,
		Number:     c.Number(),
		Version:    c.Version,
		Content:    c.Content,
		CreateTime: c.CreateTime,
		UpdateTime: c.UpdateTime,
	}
}

func (s *ExportService) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}
