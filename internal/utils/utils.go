package utils

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"
)

var Log = logrus.New()

func SetLogLevel(level string) {
	// We are not using logrus' trace and panic levels
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(log.DebugLevel)
	case "info":
		Log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(log.WarnLevel)
	case "error":
		Log.SetLevel(log.ErrorLevel)
	case "fatal":
		Log.SetLevel(log.FatalLevel)
	default:
		log.Fatal("Bad error level string")
	}
}

// BlankIfZero renders an optional integer field for CSV output.
func BlankIfZero(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// ParseYear handles both single years ("1999") and ranges ("2015-2019"),
// returning the first year of a range. Series list pages use ranges.
func ParseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '-'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	year, err := strconv.Atoi(s)
	if err != nil || year == 0 {
		return 0, false
	}
	return year, true
}
