package report

import "time"

// Day is the default report interval, in seconds
const Day = int64(24 * time.Hour / time.Second)

// GetTimeInterval fills in a missing bound of [start, end). Zero means
// missing. A missing end becomes min(start+24h, now); a missing start becomes
// end-24h
func GetTimeInterval(start, end int64, now time.Time) (int64, int64) {
	nowUnix := now.Unix()
	if end == 0 {
		end = nowUnix
		if start != 0 && start+Day < nowUnix {
			end = start + Day
		}
	}
	if start == 0 {
		start = end - Day
	}
	return start, end
}
