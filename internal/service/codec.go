package service

import (
	"encoding/json"

	"github.com/esgpipe/esgpipe/internal/model"
)

func encodeChunks(chunks []*model.Chunk) ([]byte, error) {
	return json.Marshal(chunks)
}

func decodeChunks(payload []byte) ([]*model.Chunk, error) {
	var chunks []*model.Chunk
	if err := json.Unmarshal(payload, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}
