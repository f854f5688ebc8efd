package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/repository"
)

// In-memory repository fakes for engine tests. Each fake mimics the
// Postgres implementation's contract: missing rows surface as
// pgx.ErrNoRows and Update on a stale ticket surfaces ErrConflict.

type fakeTicketRepo struct {
	tickets    map[string]*domain.Ticket
	openByUser map[string]int
	openByCust map[string]int
	updateErr  error
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		tickets:    make(map[string]*domain.Ticket),
		openByUser: make(map[string]int),
		openByCust: make(map[string]int),
	}
}

func (f *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	ticket.Version = 1
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	clone := *ticket
	f.tickets[ticket.ID] = &clone
	return nil
}

func (f *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	stored, ok := f.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Version != ticket.Version {
		return repository.ErrConflict
	}
	ticket.Version++
	ticket.UpdatedAt = time.Now()
	clone := *ticket
	f.tickets[ticket.ID] = &clone
	return nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	stored, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeTicketRepo) GetByNumber(_ context.Context, number string) (*domain.Ticket, error) {
	for _, stored := range f.tickets {
		if stored.TicketNumber == number {
			clone := *stored
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTicketRepo) ListWithFilter(_ context.Context, _ repository.TicketFilter) ([]domain.Ticket, error) {
	out := make([]domain.Ticket, 0, len(f.tickets))
	for _, stored := range f.tickets {
		out = append(out, *stored)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTicketRepo) CountOpenByAssignee(_ context.Context, userID string) (int, error) {
	return f.openByUser[userID], nil
}

func (f *fakeTicketRepo) CountOpenByCustomer(_ context.Context, customerID string) (int, error) {
	return f.openByCust[customerID], nil
}

type fakeTaskRepo struct {
	tasks map[string]*domain.Task
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[string]*domain.Task)}
}

func (f *fakeTaskRepo) Create(_ context.Context, task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.CreatedAt = time.Now()
	clone := *task
	f.tasks[task.ID] = &clone
	return nil
}

func (f *fakeTaskRepo) Update(_ context.Context, task *domain.Task) error {
	if _, ok := f.tasks[task.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *task
	f.tasks[task.ID] = &clone
	return nil
}

func (f *fakeTaskRepo) GetByID(_ context.Context, id string) (*domain.Task, error) {
	stored, ok := f.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeTaskRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Task, error) {
	var out []domain.Task
	for _, stored := range f.tasks {
		if stored.TicketID == ticketID {
			out = append(out, *stored)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTaskRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.tasks[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.tasks, id)
	return nil
}

type fakeAssignmentRepo struct {
	links map[string]*domain.TicketAssignment
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{links: make(map[string]*domain.TicketAssignment)}
}

func (f *fakeAssignmentRepo) Create(_ context.Context, link *domain.TicketAssignment) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	clone := *link
	f.links[link.ID] = &clone
	return nil
}

func (f *fakeAssignmentRepo) Deactivate(_ context.Context, id string, removedAt time.Time) error {
	stored, ok := f.links[id]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Active = false
	stored.RemovedAt = &removedAt
	return nil
}

func (f *fakeAssignmentRepo) ListActiveByTicket(_ context.Context, ticketID string) ([]domain.TicketAssignment, error) {
	var out []domain.TicketAssignment
	for _, stored := range f.links {
		if stored.TicketID == ticketID && stored.Active {
			out = append(out, *stored)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAssignmentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketAssignment, error) {
	var out []domain.TicketAssignment
	for _, stored := range f.links {
		if stored.TicketID == ticketID {
			out = append(out, *stored)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeCustomerRepo struct {
	customers map[string]*domain.Customer
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: make(map[string]*domain.Customer)}
}

func (f *fakeCustomerRepo) Create(_ context.Context, customer *domain.Customer) error {
	if customer.ID == "" {
		customer.ID = uuid.NewString()
	}
	clone := *customer
	f.customers[customer.ID] = &clone
	return nil
}

func (f *fakeCustomerRepo) Update(_ context.Context, customer *domain.Customer) error {
	if _, ok := f.customers[customer.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *customer
	f.customers[customer.ID] = &clone
	return nil
}

func (f *fakeCustomerRepo) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	stored, ok := f.customers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeCustomerRepo) List(_ context.Context, _ repository.CustomerFilter) ([]domain.Customer, error) {
	out := make([]domain.Customer, 0, len(f.customers))
	for _, stored := range f.customers {
		out = append(out, *stored)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeUserRepo struct {
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	stored, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, stored := range f.users {
		if stored.Email == email {
			clone := *stored
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// List honors the role and active filters and returns rows in id order,
// matching the Postgres implementation's ORDER BY id.
func (f *fakeUserRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	var out []domain.User
	for _, stored := range f.users {
		if filter.Role != nil && stored.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && stored.Active != *filter.Active {
			continue
		}
		out = append(out, *stored)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeAuditRepo struct {
	records   []domain.AuditRecord
	createErr error
}

func (f *fakeAuditRepo) Create(_ context.Context, record *domain.AuditRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = time.Now()
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeAuditRepo) ListByEntity(_ context.Context, entityType, entityID string, _, _ int) ([]domain.AuditRecord, error) {
	var out []domain.AuditRecord
	for _, record := range f.records {
		if record.EntityType == entityType && record.EntityID == entityID {
			out = append(out, record)
		}
	}
	return out, nil
}

// captureDispatcher records published events without delivering them.
type captureDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *captureDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *captureDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *captureDispatcher) ofType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, event := range d.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

// testEnv wires the engine against in-memory fakes with a fixed clock.
type testEnv struct {
	engine      *TicketService
	tickets     *fakeTicketRepo
	tasks       *fakeTaskRepo
	assignments *fakeAssignmentRepo
	customers   *fakeCustomerRepo
	users       *fakeUserRepo
	audit       *fakeAuditRepo
	dispatcher  *captureDispatcher
	now         time.Time
}

// newTestEnv returns an engine whose clock is pinned to a Wednesday.
func newTestEnv() *testEnv {
	env := &testEnv{
		tickets:     newFakeTicketRepo(),
		tasks:       newFakeTaskRepo(),
		assignments: newFakeAssignmentRepo(),
		customers:   newFakeCustomerRepo(),
		users:       newFakeUserRepo(),
		audit:       &fakeAuditRepo{},
		dispatcher:  &captureDispatcher{},
		now:         time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC),
	}
	env.engine = NewTicketService(TicketDependencies{
		TicketRepo:     env.tickets,
		TaskRepo:       env.tasks,
		AssignmentRepo: env.assignments,
		CustomerRepo:   env.customers,
		UserRepo:       env.users,
		AuditRepo:      env.audit,
		Dispatcher:     env.dispatcher,
	})
	env.engine.now = func() time.Time { return env.now }
	return env
}

func (env *testEnv) addUser(id string, role domain.UserRole, active bool) *domain.User {
	user := &domain.User{ID: id, Name: id, Email: id + "@example.com", Role: role, Active: active}
	_ = env.users.Create(context.Background(), user)
	return user
}

func (env *testEnv) addCustomer(id string, active bool) *domain.Customer {
	customer := &domain.Customer{ID: id, Name: "customer " + id, Active: active}
	_ = env.customers.Create(context.Background(), customer)
	return customer
}

func (env *testEnv) addTicket(id string, status domain.TicketStatus) *domain.Ticket {
	ticket := &domain.Ticket{
		ID:           id,
		TicketNumber: "SVC-" + id,
		CustomerID:   "cust-1",
		CreatedBy:    "admin-1",
		Title:        "broken unit",
		Description:  "does not start",
		Status:       status,
		Priority:     domain.TicketPriorityNormal,
	}
	_ = env.tickets.Create(context.Background(), ticket)
	return ticket
}

func (env *testEnv) addTask(id, ticketID string, completed bool) *domain.Task {
	task := &domain.Task{ID: id, TicketID: ticketID, Description: "check wiring", Completed: completed}
	_ = env.tasks.Create(context.Background(), task)
	return task
}

func (env *testEnv) assign(ticketID, userID string) *domain.TicketAssignment {
	link := &domain.TicketAssignment{
		TicketID:   ticketID,
		UserID:     userID,
		AssignedBy: "admin-1",
		AssignedAt: env.now,
		Active:     true,
	}
	_ = env.assignments.Create(context.Background(), link)
	return link
}
