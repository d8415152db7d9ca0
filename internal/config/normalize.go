package config

import "strings"

// normalize expands filesystem paths and trims user-supplied strings so the
// rest of the program can rely on absolute, clean values.
func (c *Config) normalize() error {
	logDir, err := expandPath(c.Paths.LogDir)
	if err != nil {
		return err
	}
	c.Paths.LogDir = logDir

	if dir := strings.TrimSpace(c.Paths.OutputDir); dir != "" {
		expanded, err := expandPath(dir)
		if err != nil {
			return err
		}
		c.Paths.OutputDir = expanded
	} else {
		c.Paths.OutputDir = ""
	}

	if path := strings.TrimSpace(c.History.DBPath); path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return err
		}
		c.History.DBPath = expanded
	} else {
		c.History.DBPath = ""
	}

	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}
