// Copyright 2025.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package domain

import "time"

// Scan result source prefixes. Source identifies provenance of the captured
// output: "path:<path>" for directory listings, "command:<command>" for
// commands run verbatim.
const (
	SourcePathPrefix    = "path:"
	SourceCommandPrefix = "command:"
)

// ScanResult is one captured piece of remote output. Content is never empty;
// empty-output scans are discarded before a result is built.
type ScanResult struct {
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SearchMatch is a keyword search hit. Content holds only the lines of the
// original result that contain the query, capped at a few lines so results
// stay scannable.
type SearchMatch struct {
	ServerID  string    `json:"server_id"`
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	MatchType string    `json:"match_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SavedCommand is a named favorite command.
type SavedCommand struct {
	Name    string `json:"name"`
	Command string `json:"command"`
}
