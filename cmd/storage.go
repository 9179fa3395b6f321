package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"

	"stemset/config"
	"stemset/storage"
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Test the object storage connection",
	Long:  `Connect to the configured MinIO endpoint, write a probe object, read it back and delete it.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		fmt.Printf("Storage target: %s, bucket %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewMinioStore(cfg)
		if err != nil {
			log.Fatalf("storage connection failed: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		key := fmt.Sprintf("probe/%d.txt", time.Now().UnixMilli())
		payload := []byte("stemset storage probe")

		if _, err := store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), "text/plain"); err != nil {
			log.Fatalf("probe write failed: %v", err)
		}

		obj, err := store.Get(ctx, key)
		if err != nil {
			log.Fatalf("probe read failed: %v", err)
		}
		data, err := io.ReadAll(obj)
		obj.Close()
		if err != nil || !bytes.Equal(data, payload) {
			log.Fatalf("probe readback mismatch: %v", err)
		}

		if err := store.Delete(ctx, key); err != nil {
			log.Fatalf("probe delete failed: %v", err)
		}
		fmt.Println("Storage probe passed.")
	},
}

func init() {
	rootCmd.AddCommand(storageCmd)
}
