package report

import (
	"sort"

	"github.com/aparcar/buildboard/internal/charts"
	"github.com/aparcar/buildboard/internal/models"
)

const dayLayout = "2006-01-02"

// DailyJobTypeRunTime sums the run time of finished requests per submission
// day and job type, in minutes. Builders without a job type count as other
func DailyJobTypeRunTime(reqs []*models.BuildRequest) charts.Dataset {
	perDay := make(map[string]map[string]int64)
	jobTypes := make(map[string]bool)

	for _, br := range reqs {
		if !br.IsFinished() {
			continue
		}
		jt := JobType(br.BuilderName)
		if jt == "" {
			jt = Other
		}
		day := br.Submitted().Format(dayLayout)
		if perDay[day] == nil {
			perDay[day] = make(map[string]int64)
		}
		perDay[day][jt] += br.RunTime()
		jobTypes[jt] = true
	}

	series := make([]string, 0, len(jobTypes))
	for jt := range jobTypes {
		series = append(series, jt)
	}
	sort.Strings(series)

	days := make([]string, 0, len(perDay))
	for day := range perDay {
		days = append(days, day)
	}
	sort.Strings(days)

	data := charts.Dataset{Columns: append([]string{"day"}, series...)}
	for _, day := range days {
		values := make([]float64, len(series))
		for i, jt := range series {
			values[i] = float64(perDay[day][jt]) / 60
		}
		data.Rows = append(data.Rows, charts.DataRow{Label: day, Values: values})
	}
	return data
}
