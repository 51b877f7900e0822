// Package exifdex embeds the exifdex metadata index in a Go program: ingest records
// produced by a metadata extractor, then filter, search, group and aggregate them without
// running the HTTP server.
//
//	client, _ := exifdex.New(ctx, exifdex.WithMemory())
//	defer client.Close()
//
//	_, _ = client.Upsert(ctx, map[string]any{
//	    "SourceFile": "/photos/a.jpg", "EXIF:Make": "Apple", "EXIF:ISO": 100,
//	})
//	n, _ := client.Count(ctx, exifdex.Criteria{Where: map[string]any{"EXIF:Make": "Apple"}})
//	docs, _ := client.Aggregate(ctx,
//	    exifdex.Stage{"$match": map[string]any{"EXIF:ISO": map[string]any{"$gte": 100}}},
//	    exifdex.Stage{"$sort": map[string]any{"EXIF:ISO": -1}},
//	    exifdex.Stage{"$limit": 10},
//	)
//
// Semantic search needs an Embedder (WithEmbedder); exact filters and pipelines work
// without one.
package exifdex
