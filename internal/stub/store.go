package stub

import (
	"errors"
	"sync"
	"time"

	"github.com/workload-runner/internal/model"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrExists            = errors.New("already exists")
	ErrInsufficientStock = errors.New("exceeded quantity limit")
)

// Store is the shared in-memory state behind every stub service.
type Store struct {
	mu        sync.RWMutex
	users     map[int]model.UserRecord
	products  map[int]model.ProductRecord
	orders    map[int]model.OrderRecord
	nextOrder int
}

func NewStore() *Store {
	s := &Store{}
	s.Reset()
	return s
}

func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[int]model.UserRecord)
	s.products = make(map[int]model.ProductRecord)
	s.orders = make(map[int]model.OrderRecord)
	s.nextOrder = 1
}

func (s *Store) CreateUser(u model.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return ErrExists
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) GetUser(id int) (model.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.UserRecord{}, ErrNotFound
	}
	return u, nil
}

func (s *Store) UpdateUser(id int, apply func(*model.UserRecord)) (model.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.UserRecord{}, ErrNotFound
	}
	apply(&u)
	u.ID = id
	s.users[id] = u
	return u, nil
}

func (s *Store) DeleteUser(id int) (model.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.UserRecord{}, ErrNotFound
	}
	delete(s.users, id)
	return u, nil
}

func (s *Store) CreateProduct(p model.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; ok {
		return ErrExists
	}
	s.products[p.ID] = p
	return nil
}

func (s *Store) GetProduct(id int) (model.ProductRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return model.ProductRecord{}, ErrNotFound
	}
	return p, nil
}

func (s *Store) UpdateProduct(id int, apply func(*model.ProductRecord)) (model.ProductRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return model.ProductRecord{}, ErrNotFound
	}
	apply(&p)
	p.ID = id
	s.products[id] = p
	return p, nil
}

func (s *Store) DeleteProduct(id int) (model.ProductRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return model.ProductRecord{}, ErrNotFound
	}
	delete(s.products, id)
	return p, nil
}

// PlaceOrder checks the user and product exist and takes the quantity out
// of stock. A zero id gets the next free order id.
func (s *Store) PlaceOrder(o model.OrderRecord) (model.OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[o.UserID]; !ok {
		return model.OrderRecord{}, ErrNotFound
	}
	p, ok := s.products[o.ProductID]
	if !ok {
		return model.OrderRecord{}, ErrNotFound
	}
	if o.Quantity > p.Quantity {
		return model.OrderRecord{}, ErrInsufficientStock
	}

	if o.ID == 0 {
		for {
			if _, taken := s.orders[s.nextOrder]; !taken {
				break
			}
			s.nextOrder++
		}
		o.ID = s.nextOrder
	}
	if _, ok := s.orders[o.ID]; ok {
		return model.OrderRecord{}, ErrExists
	}

	p.Quantity -= o.Quantity
	s.products[p.ID] = p
	o.CreatedAt = time.Now()
	s.orders[o.ID] = o
	return o, nil
}

func (s *Store) GetOrder(id int) (model.OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return model.OrderRecord{}, ErrNotFound
	}
	return o, nil
}
