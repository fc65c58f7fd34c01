package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/altamira-data/queryhub/common/logger"
	"github.com/altamira-data/queryhub/embedding"
	"github.com/altamira-data/queryhub/schema"
	"github.com/altamira-data/queryhub/secrets"
	"github.com/altamira-data/queryhub/vectordb"
)

// ingestDoc is one line of the JSONL ingest format.
type ingestDoc struct {
	ID         string `json:"id,omitempty"`
	Content    string `json:"content"`
	Tier       string `json:"tier,omitempty"`
	Entity     string `json:"entity,omitempty"`
	SourceTime string `json:"source_time,omitempty"`
}

var ingestBatchSize int

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.jsonl>",
	Short: "Load passages into the vector store",
	Long: `Reads one JSON document per line ({"content": ..., "tier": ..., "entity": ...,
"source_time": ...}), embeds each document and upserts it into the vector
store. HIGH tier content is encrypted at rest when an encryption key is
configured.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		embedder, err := embedding.NewProvider(cfg.Embedding)
		if err != nil {
			return err
		}
		store, err := vectordb.NewProvider(ctx, cfg.VectorDB, embedder.GetDimensions())
		if err != nil {
			return err
		}
		defer store.Close()

		var encryptor *secrets.Encryptor
		if cfg.Secrets.EncryptionKey != "" {
			encryptor, err = secrets.FromBase64(cfg.Secrets.EncryptionKey)
			if err != nil {
				return err
			}
		}

		file, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer file.Close()

		var batch []schema.Passage
		total := 0
		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var doc ingestDoc
			if err := json.Unmarshal([]byte(line), &doc); err != nil {
				return fmt.Errorf("line %d: %w", total+1, err)
			}
			passage, err := buildPassage(ctx, doc, embedder, encryptor)
			if err != nil {
				return fmt.Errorf("line %d: %w", total+1, err)
			}
			batch = append(batch, passage)
			total++

			if len(batch) >= ingestBatchSize {
				if err := store.AddDocs(ctx, batch); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		if len(batch) > 0 {
			if err := store.AddDocs(ctx, batch); err != nil {
				return err
			}
		}
		logger.Infof("ingested %d passage(s)", total)
		return nil
	},
}

func buildPassage(ctx context.Context, doc ingestDoc, embedder embedding.Provider, encryptor *secrets.Encryptor) (schema.Passage, error) {
	if doc.Content == "" {
		return schema.Passage{}, fmt.Errorf("document has no content")
	}

	vector, err := embedder.GetEmbedding(ctx, doc.Content)
	if err != nil {
		return schema.Passage{}, err
	}

	passage := schema.Passage{
		ID:     doc.ID,
		Tier:   schema.ParseTier(strings.ToUpper(doc.Tier)),
		Entity: doc.Entity,
		Vector: vector,
	}
	if passage.ID == "" {
		passage.ID = uuid.NewString()
	}
	if doc.SourceTime != "" {
		ts, err := time.Parse(time.RFC3339, doc.SourceTime)
		if err != nil {
			return schema.Passage{}, fmt.Errorf("bad source_time: %w", err)
		}
		passage.SourceTime = ts
	}

	if passage.Tier == schema.TierHigh && encryptor != nil {
		cipher, err := encryptor.Encrypt(doc.Content)
		if err != nil {
			return schema.Passage{}, err
		}
		passage.Cipher = cipher
	} else {
		passage.Content = doc.Content
	}
	return passage, nil
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new base64 encryption key",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := secrets.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch", 64, "documents per upsert batch")
}
