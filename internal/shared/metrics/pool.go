package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pool agrupa os coletores do engine de apostas.
// Os métodos casam com os hooks do pool.Engine (OnBetPlaced, OnResolved, ...).
type Pool struct {
	BetsPlaced    prometheus.Counter
	StakeTotal    prometheus.Counter
	Resolutions   prometheus.Counter
	PaidOut       prometheus.Counter
	Errors        *prometheus.CounterVec
	PublishErrors *prometheus.CounterVec
}

func NewPool(reg prometheus.Registerer) *Pool {
	p := &Pool{
		BetsPlaced:    prometheus.NewCounter(prometheus.CounterOpts{Name: "pool_bets_placed_total", Help: "apostas aceitas"}),
		StakeTotal:    prometheus.NewCounter(prometheus.CounterOpts{Name: "pool_stake_credits_total", Help: "créditos apostados"}),
		Resolutions:   prometheus.NewCounter(prometheus.CounterOpts{Name: "pool_resolutions_total", Help: "eventos resolvidos"}),
		PaidOut:       prometheus.NewCounter(prometheus.CounterOpts{Name: "pool_paid_out_credits_total", Help: "créditos pagos a vencedores"}),
		Errors:        prometheus.NewCounterVec(prometheus.CounterOpts{Name: "pool_errors_total", Help: "erros por operação e tipo"}, []string{"op", "kind"}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "pool_publish_errors_total", Help: "falhas ao publicar eventos de domínio"}, []string{"topic"}),
	}
	reg.MustRegister(p.BetsPlaced, p.StakeTotal, p.Resolutions, p.PaidOut, p.Errors, p.PublishErrors)
	return p
}

func (p *Pool) BetPlaced(amount int64) {
	p.BetsPlaced.Inc()
	p.StakeTotal.Add(float64(amount))
}

func (p *Pool) Resolved(totalPaid int64) {
	p.Resolutions.Inc()
	p.PaidOut.Add(float64(totalPaid))
}

func (p *Pool) Error(op, kind string) { p.Errors.WithLabelValues(op, kind).Inc() }

func (p *Pool) PublishError(topic string) { p.PublishErrors.WithLabelValues(topic).Inc() }

// Stream agrupa os coletores do worker de odds em tempo real.
type Stream struct {
	Consumed  prometheus.Counter
	Relayed   prometheus.Counter
	Delivered prometheus.Counter
	Errors    *prometheus.CounterVec
}

func NewStream(reg prometheus.Registerer) *Stream {
	s := &Stream{
		Consumed:  prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_stream_messages_consumed_total", Help: "mensagens consumidas"}),
		Relayed:   prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_stream_relayed_total", Help: "atualizações publicadas no Redis"}),
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_stream_ws_deliveries_total", Help: "mensagens entregues a clientes WS"}),
		Errors:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "odds_stream_errors_total", Help: "erros por estágio"}, []string{"stage"}),
	}
	reg.MustRegister(s.Consumed, s.Relayed, s.Delivered, s.Errors)
	return s
}
