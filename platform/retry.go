package platform

import "time"

// attempt calls try up to n times (at least once), sleeping delay between failed
// calls but not after the last one. It returns the last error.
func attempt(n int, delay time.Duration, sleep func(time.Duration), try func() error) error {
	var err error
	for i := 0; i < max(n, 1); i++ {
		if i > 0 {
			sleep(delay)
		}
		if err = try(); err == nil {
			return nil
		}
	}
	return err
}
