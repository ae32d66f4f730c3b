// Package ingest turns tabular detection exports into a unified, sorted
// dataset of detection records.
//
// Two input layouts are recognised: the bounding-box export
// (frame_id, player_id, timestamp_s, x1..h, confidence) and the tracker
// export (frame_id, track_id, x, y, width, height, conf, class_id,
// visibility). The layout is detected from the header and each is mapped
// onto Record by its own normalisation function. Numeric cells that do not
// parse become NaN (or an invalid ID); rows whose centre is not finite are
// dropped.
//
// Key types: Table, Dataset, Record, SchemaError.
package ingest
