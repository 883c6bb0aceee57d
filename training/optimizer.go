package training

// SGD is a plain stochastic gradient descent optimizer over Parameter
// slices, with optional momentum. It exists so the package is usable out
// of the box; production models bring their own Optimizer.
type SGD struct {
	params       []Parameter
	learningRate float64
	momentum     float64
	velocities   [][]float64
}

// NewSGD creates an SGD optimizer for the given parameters.
func NewSGD(params []Parameter, lr float64, momentum float64) *SGD {
	sgd := &SGD{
		params:       params,
		learningRate: lr,
		momentum:     momentum,
	}
	if momentum > 0 {
		sgd.velocities = make([][]float64, len(params))
		for i, p := range params {
			sgd.velocities[i] = make([]float64, len(p.Data()))
		}
	}
	return sgd
}

// ZeroGrad resets all accumulated gradients to zero.
func (sgd *SGD) ZeroGrad() {
	for _, p := range sgd.params {
		grad := p.Grad()
		for i := range grad {
			grad[i] = 0
		}
	}
}

// Step applies one update: v = momentum*v + grad; data -= lr * v.
func (sgd *SGD) Step() error {
	for i, p := range sgd.params {
		data, grad := p.Data(), p.Grad()
		if grad == nil {
			continue
		}
		if sgd.momentum > 0 {
			v := sgd.velocities[i]
			for j := range data {
				v[j] = sgd.momentum*v[j] + grad[j]
				data[j] -= sgd.learningRate * v[j]
			}
		} else {
			for j := range data {
				data[j] -= sgd.learningRate * grad[j]
			}
		}
	}
	return nil
}

// GetLR returns the current learning rate.
func (sgd *SGD) GetLR() float64 { return sgd.learningRate }

// SetLR sets the learning rate; schedulers call this.
func (sgd *SGD) SetLR(lr float64) { sgd.learningRate = lr }
