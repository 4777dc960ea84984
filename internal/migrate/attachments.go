package migrate

import (
	"context"
	"log"
	"sync"

	"petalsync/migrate/internal/storage"
)

// copyWindow bounds the fan-out per chunk; chunks run strictly
// sequentially, so throughput is chunk count times worst per-item latency.
const copyWindow = 10

// CopyAttachments copies every object under prefix from src to dst.
// Within a chunk the copies fan out and are waited for together; a failed
// item is logged and counted, never fatal.
func CopyAttachments(ctx context.Context, src, dst storage.Store, prefix string) (copied, failed int, err error) {
	paths, err := src.List(ctx, prefix)
	if err != nil {
		return 0, 0, err
	}

	for start := 0; start < len(paths); start += copyWindow {
		end := start + copyWindow
		if end > len(paths) {
			end = len(paths)
		}
		chunk := paths[start:end]

		results := make([]error, len(chunk))
		var wg sync.WaitGroup
		for i, path := range chunk {
			wg.Add(1)
			go func(i int, path string) {
				defer wg.Done()
				obj, err := src.Download(ctx, path)
				if err != nil {
					results[i] = err
					return
				}
				results[i] = dst.Upload(ctx, obj)
			}(i, path)
		}
		wg.Wait()

		for i, res := range results {
			if res != nil {
				log.Printf("[migrate] attachment copy failed path=%s: %v", chunk[i], res)
				failed++
				continue
			}
			copied++
		}
		log.Printf("[migrate] attachments: %d/%d copied, %d failed", copied, len(paths), failed)
	}

	return copied, failed, nil
}
