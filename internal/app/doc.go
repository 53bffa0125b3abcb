// Package app provides the orchestration layer for the Tabby application.
//
// # Overview
//
// This package wires together configuration, logging, metrics, tracing, the
// cat API client, the shared cache, the coordinator and the UI. It is the
// composition root where all dependencies are initialized and connected.
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │ Initialize everything
//	└──────┬───────┘
//	       │
//	       ├─────> config.LoadEnvFiles() .env, .env.local
//	       ├─────> config.Load()         ~/.config/tabby/config.toml
//	       ├─────> logging.Open()        log file at the configured level
//	       ├─────> metrics.New()         served on metrics_addr when set
//	       ├─────> telemetry.InitTracer() spans to trace_file when set
//	       ├─────> catapi.NewClient()    HTTP client for TheCatAPI
//	       ├─────> coord.New()           operations over a shared state.Store
//	       ├─────> view.OpenList()       list screen, loads at once
//	       ├─────> StartRefresher()      optional background refresh
//	       └─────> ui.Run()              Start TUI (blocks)
//
// With Options.ListOnly the UI is skipped: Run performs one fetch or search,
// prints "id<TAB>name" per breed and returns.
//
// # Background Refresh
//
// When refresh_interval (or Options.RefreshEvery) is positive, the list
// screen's active operation is repeated on that cadence. Consecutive failures
// double the delay up to 30 seconds; one success resets it.
//
// # Shutdown
//
// Screens close first. Then the coordinator's context is cancelled and Run
// waits for every running operation before flushing traces and closing the
// log file.
package app
