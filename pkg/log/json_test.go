// Copyright 2018 The gVisor Authors.
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

package log

import (
	"encoding/json"
	"testing"
	"time"
)

func TestLevelText(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "warning", want: Warning},
		{in: "Info", want: Info},
		{in: "debug", want: Debug},
		{in: "0", want: Warning},
		{in: "2", want: Debug},
		{in: "3", wantErr: true},
		{in: "trace", wantErr: true},
		{in: "", wantErr: true},
	} {
		var got Level
		err := got.UnmarshalText([]byte(tc.in))
		if (err != nil) != tc.wantErr || (!tc.wantErr && got != tc.want) {
			t.Errorf("UnmarshalText(%q) = (%v, %v), wanted (%v, err=%t)", tc.in, got, err, tc.want, tc.wantErr)
		}
	}
	if _, err := Level(7).MarshalText(); err == nil {
		t.Errorf("MarshalText(7) succeeded, wanted error")
	}
}

func TestLevelInJSON(t *testing.T) {
	type settings struct {
		Level Level `json:"level"`
	}
	b, err := json.Marshal(settings{Level: Debug})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if got, want := string(b), `{"level":"debug"}`; got != want {
		t.Errorf("got %s, wanted %s", got, want)
	}
	var s settings
	if err := json.Unmarshal([]byte(`{"level":"warning"}`), &s); err != nil || s.Level != Warning {
		t.Errorf("Unmarshal = (%v, %v), wanted warning", s.Level, err)
	}
}

func TestJSONEmitterUnknownLevel(t *testing.T) {
	tw := &testWriter{}
	JSONEmitter{&Writer{Next: tw}}.Emit(0, Level(9), time.Time{}, "odd %s", "level")
	if want := `{"msg":"odd level","level":9}` + "\n"; len(tw.lines) != 1 || tw.lines[0] != want {
		t.Errorf("got lines %q, wanted %q", tw.lines, want)
	}
}
