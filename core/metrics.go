package core

// Metrics records domain events.
type Metrics interface {
	Enrolled(paymentStatus string)
	QuizSubmitted(passed bool)
	CertificateIssued()
}

type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) Enrolled(string)    {}
func (NopMetrics) QuizSubmitted(bool) {}
func (NopMetrics) CertificateIssued() {}
