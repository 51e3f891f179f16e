package version

const Value = "0.4.0"

func ClientUserAgent() string {
	return "smarttest/" + Value + " (scan comparison client)"
}

func DashboardUserAgent() string {
	return "smarttest-dashboard/" + Value
}
