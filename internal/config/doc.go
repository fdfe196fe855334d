// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates the chatdesk configuration.
//
// Configuration lives in ~/.chatdesk/config.toml (or config.json as a
// fallback). Missing values take defaults and CHATDESK_* environment
// variables override the file.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.API.BaseURL)
//
// Values can also be addressed by dotted key:
//
//	v, _ := cfg.Get("api.base_url")
//	_ = cfg.Set("logging.level", "debug")
package config
