package metricsx

// DeviceMetricName appends a device="..." label to name, preserving any
// existing label already present on name (same splitName/formatName
// convention used throughout this package).
func DeviceMetricName(name, deviceID string) string {
	base, arg := splitName(name)
	return formatName(base, arg, "device", deviceID)
}

// PropertyMetricName appends device="..." and property="..." labels to
// name, for metrics broken down by individual datapoint.
func PropertyMetricName(name, deviceID, property string) string {
	base, arg := splitName(name)
	return formatName(base, arg, "device", deviceID, "property", property)
}
