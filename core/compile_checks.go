package core

var (
	_ EndpointResolver = (*Resolver)(nil)
	_ Notifier         = NopNotifier{}
	_ MetricsRecorder  = NopMetricsRecorder{}
	_ ConfigProvider   = (*CfgxConfigProvider)(nil)
	_ OptionsResolver  = GoOptionsResolver{}
	_ RawConfigLoader  = StaticRawConfigLoader{}
)

var (
	_ BackoffScheduler = LinearBackoffScheduler{}
	_ BackoffScheduler = ExponentialBackoffScheduler{}
)
