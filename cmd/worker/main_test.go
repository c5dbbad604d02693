package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaschema/internal/infrastructure/artifact"
	"metaschema/internal/metadata"
	"metaschema/internal/metadata/ddl"
	"metaschema/internal/metadata/metatest"
	"metaschema/pkg/logger"
)

func TestDDLWorker_RegeneratesOnTrigger(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := metatest.Store()
	writer := artifact.NewWriter("/out", artifact.WithFileSystem(memoryfs.New()), artifact.WithLogger(logger.Nop()))
	gen := ddl.NewGenerator(store, ddl.WithArtifactWriter(writer), ddl.WithGeneratorLogger(logger.Nop()))
	w := NewDDLWorker(store, gen, ddl.Options{Dialect: ddl.Postgres, Output: "schema.sql"}, logger.Nop())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, 0) }()

	var script []byte
	require.Eventually(t, func() bool {
		data, err := writer.Read("schema.sql")
		if err != nil {
			return false
		}
		script = data
		return true
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, string(script), "CREATE TABLE IF NOT EXISTS doc_calc_order")

	doc := metatest.Document()
	doc.Put(metadata.KindCatalog, "warehouses", &metadata.Class{Name: "warehouses", Synonym: "Склады"})
	store.Load(doc)
	w.Trigger()

	require.Eventually(t, func() bool {
		data, err := writer.Read("schema.sql")
		return err == nil && strings.Contains(string(data), "CREATE TABLE IF NOT EXISTS cat_warehouses")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
