// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/lumberjack/v2"

	"github.com/juju/deploystack/juju/osenv"
)

const (
	fileWriterName = "file"

	logFileMaxSizeMB  = 100
	logFileMaxBackups = 2
)

// setupLogging sends all logging to w, at level for the root logger. The
// logging config in $JUJU_LOGGING_CONFIG, if any, is applied on top. When
// logFile is set, logging also goes to that rotated file; the returned func
// closes it.
func setupLogging(w io.Writer, level loggo.Level, logFile string) (func(), error) {
	if _, err := loggo.ReplaceDefaultWriter(loggo.NewSimpleWriter(w, logFormatter)); err != nil {
		return nil, errors.Trace(err)
	}
	if err := loggo.ConfigureLoggers(fmt.Sprintf("<root>=%s", level)); err != nil {
		return nil, errors.Trace(err)
	}
	if config := os.Getenv(osenv.JujuLoggingConfigEnvKey); config != "" {
		if err := loggo.ConfigureLoggers(config); err != nil {
			return nil, errors.Annotatef(err, "invalid $%s", osenv.JujuLoggingConfigEnvKey)
		}
	}
	if logFile == "" {
		return func() {}, nil
	}

	ljLogger := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
		Compress:   true,
	}
	if err := loggo.RegisterWriter(fileWriterName, loggo.NewSimpleWriter(ljLogger, logFormatter)); err != nil {
		return nil, errors.Annotatef(err, "logging to %s", logFile)
	}
	return func() {
		_, _ = loggo.RemoveWriter(fileWriterName)
		_ = ljLogger.Close()
	}, nil
}

func logFormatter(entry loggo.Entry) string {
	ts := entry.Timestamp.In(time.UTC).Format("2006-01-02 15:04:05")
	return fmt.Sprintf("%s %s %s %s", ts, entry.Level, entry.Module, entry.Message)
}
