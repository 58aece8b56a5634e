package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const fallbackEncoding = "cl100k_base"

// Encodings ship embedded; nothing is downloaded at runtime.
var offlineOnce sync.Once

// Counter estimates token counts with tiktoken encodings, cached per model.
type Counter struct {
	mu       sync.Mutex
	encoders map[string]*tiktoken.Tiktoken
}

// NewCounter builds an empty counter; encodings load lazily.
func NewCounter() *Counter {
	offlineOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	return &Counter{encoders: make(map[string]*tiktoken.Tiktoken)}
}

// Count returns the number of tokens text encodes to for model. Models
// tiktoken does not know use cl100k_base.
func (c *Counter) Count(model, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	enc, err := c.encoder(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

func (c *Counter) encoder(model string) (*tiktoken.Tiktoken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encoders[model]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("load tiktoken encoding: %w", err)
		}
	}
	c.encoders[model] = enc
	return enc, nil
}
