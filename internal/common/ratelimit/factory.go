package ratelimit

// New builds the limiter selected by config.Type. counter is only used by
// the distributed backend.
func New(config Config, counter WindowCounter) (Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Type == BackendDistributed {
		return NewDistributedLimiter(config, counter)
	}
	return NewLocalLimiter(config)
}
