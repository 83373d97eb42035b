package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadReadsIvfflatLists(t *testing.T) {
	t.Setenv("PGVECTOR_IVFFLAT_LISTS", "200")
	cfg := Load()
	assert.Equal(t, 200, cfg.Database.IvfflatLists)
}

func TestLoadIvfflatListsDefault(t *testing.T) {
	t.Setenv("PGVECTOR_IVFFLAT_LISTS", "")
	cfg := Load()
	assert.Equal(t, 100, cfg.Database.IvfflatLists)
}
