// Package inmemdb is a map-backed implementation of the repositories, used by tests and local demos.
package inmemdb

import (
	"sync"
	"time"

	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/discussion"
	"github.com/trezcool/darasa/core/organization"
	"github.com/trezcool/darasa/core/resource"
	"github.com/trezcool/darasa/core/schedule"
	"github.com/trezcool/darasa/core/subject"
	"github.com/trezcool/darasa/core/user"
)

// DefaultSubjects is a subset of the catalogue seeded by the SQL migrations, in the same order.
var DefaultSubjects = []string{
	"Mathematics",
	"English",
	"Science",
	"Physics",
	"Chemistry",
	"Biology",
	"History",
	"Geography",
	"Computer Science",
	"Physical Education",
}

// DB holds every table. A single lock guards them all so that cascades and multi-table writes are atomic.
type DB struct {
	mutex sync.RWMutex

	users        map[int]*user.User
	supervisions map[int]*user.Supervision
	orgs         map[int]*organization.Organization
	memberships  map[int]*organization.Membership
	subjects     map[int]*subject.Subject
	classes      map[int]*class.Class
	enrollments  map[int]*class.Enrollment
	resources    map[int]*resource.Resource
	events       map[int]*schedule.Event
	discussions  map[int]*discussion.Discussion
	replies      map[int]*discussion.Reply

	pks map[string]int
}

func Open() *DB {
	db := &DB{
		users:        make(map[int]*user.User),
		supervisions: make(map[int]*user.Supervision),
		orgs:         make(map[int]*organization.Organization),
		memberships:  make(map[int]*organization.Membership),
		subjects:     make(map[int]*subject.Subject),
		classes:      make(map[int]*class.Class),
		enrollments:  make(map[int]*class.Enrollment),
		resources:    make(map[int]*resource.Resource),
		events:       make(map[int]*schedule.Event),
		discussions:  make(map[int]*discussion.Discussion),
		replies:      make(map[int]*discussion.Reply),
		pks:          make(map[string]int),
	}
	now := time.Now().UTC()
	for _, name := range DefaultSubjects {
		id := db.nextPK("subject")
		db.subjects[id] = &subject.Subject{ID: id, Name: name, CreatedAt: now}
	}
	return db
}

// nextPK must be called with the write lock held.
func (db *DB) nextPK(table string) int {
	db.pks[table]++
	return db.pks[table]
}

// Repositories bundles the repositories sharing one DB.
type Repositories struct {
	Users         user.Repository
	Organizations organization.Repository
	Subjects      subject.Repository
	Classes       class.Repository
	Resources     resource.Repository
	Schedule      schedule.Repository
	Discussions   discussion.Repository
}

func NewRepositories(db *DB) Repositories {
	return Repositories{
		Users:         NewUserRepository(db),
		Organizations: NewOrganizationRepository(db),
		Subjects:      NewSubjectRepository(db),
		Classes:       NewClassRepository(db),
		Resources:     NewResourceRepository(db),
		Schedule:      NewScheduleRepository(db),
		Discussions:   NewDiscussionRepository(db),
	}
}

func (db *DB) userName(id int) string {
	if usr, ok := db.users[id]; ok {
		return usr.Name()
	}
	return ""
}

func containsInt(ids []int, id int) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}
