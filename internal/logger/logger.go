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

package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds a file-backed sugared logger. Logs go to
// ~/.config/<name>/logs/<name>.log with rotation; stdout stays clean for the
// interactive session. Debug level is controlled by the <NAME>_DEBUG env var
// or the debug argument.
func New(name string, debug bool) (*zap.SugaredLogger, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	logFile := filepath.Join(home, ".config", name, "logs", name+".log")
	writer := &lumberjack.Logger{
		Filename:   logFile,
		LocalTime:  true,
		MaxBackups: 10,
		MaxSize:    10,
	}

	level := zapcore.InfoLevel
	if debug || os.Getenv("EC2SSH_DEBUG") != "" {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(writer),
		level,
	)

	return zap.New(core, zap.AddCaller()).Sugar(), nil
}
