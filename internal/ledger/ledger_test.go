package ledger

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
)

var created = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func openSQL(t *testing.T) *SqlLedger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "run", "state.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func backends(t *testing.T) map[string]Ledger {
	return map[string]Ledger{
		"sqlite": openSQL(t),
		"memory": NewMemLedger(),
	}
}

func TestLedger_InsertIfAbsent(t *testing.T) {
	for name, l := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := l.HasOpportunity("run-1", "OPP-1")
			if err != nil || ok {
				t.Fatalf("HasOpportunity before record: %v %v", ok, err)
			}
			for range 2 {
				if err := l.RecordOpportunity("run-1", "OPP-1", created); err != nil {
					t.Fatalf("RecordOpportunity: %v", err)
				}
			}
			if ok, _ := l.HasOpportunity("run-1", "OPP-1"); !ok {
				t.Error("opportunity not found after record")
			}
			if ok, _ := l.HasOpportunity("run-2", "OPP-1"); ok {
				t.Error("opportunity leaked across runs")
			}

			first := Activity{RunID: "run-1", OppID: "OPP-1", Signature: "sig-a", ActivityID: "00U1", Type: TypeMeeting, CreatedAt: created}
			dup := first
			dup.ActivityID = "00U2"
			for _, a := range []Activity{first, dup} {
				if err := l.RecordActivity(a); err != nil {
					t.Fatalf("RecordActivity: %v", err)
				}
			}
			if ok, _ := l.HasActivity("run-1", "OPP-1", "sig-a"); !ok {
				t.Error("activity not found")
			}
			if ok, _ := l.HasActivity("run-1", "OPP-2", "sig-a"); ok {
				t.Error("activity keyed without opportunity")
			}

			sc := Scorecard{RunID: "run-1", OppID: "OPP-1", ScorecardID: "sc_opp-1_meddicc", Template: "MEDDICC", CreatedAt: created}
			if err := l.RecordScorecard(sc); err != nil {
				t.Fatalf("RecordScorecard: %v", err)
			}
			if err := l.RecordScorecard(sc); err != nil {
				t.Fatalf("RecordScorecard duplicate: %v", err)
			}
			if ok, _ := l.HasScorecard("run-1", "OPP-1", "MEDDICC"); !ok {
				t.Error("scorecard not found")
			}
			if ok, _ := l.HasScorecard("run-1", "OPP-1", "BANT"); ok {
				t.Error("unexpected BANT scorecard")
			}

			ans := Answer{RunID: "run-1", ScorecardID: sc.ScorecardID, QuestionID: "champion", Confidence: 0.82, CreatedAt: created}
			for range 2 {
				if err := l.RecordScorecardAnswer(ans); err != nil {
					t.Fatalf("RecordScorecardAnswer: %v", err)
				}
			}
			if ok, _ := l.HasScorecardAnswer("run-1", sc.ScorecardID, "champion"); !ok {
				t.Error("answer not found")
			}

			got, err := l.Counts("run-1")
			if err != nil {
				t.Fatalf("Counts: %v", err)
			}
			if diff := cmp.Diff(Counts{Opportunities: 1, Activities: 1, Scorecards: 1, Answers: 1}, got); diff != "" {
				t.Errorf("Counts (-want +got):\n%s", diff)
			}

			acts, err := l.RunActivities("run-1")
			if err != nil {
				t.Fatalf("RunActivities: %v", err)
			}
			if diff := cmp.Diff([]Activity{first}, acts); diff != "" {
				t.Errorf("RunActivities: first write must win (-want +got):\n%s", diff)
			}
			scs, err := l.RunScorecards("run-1")
			if err != nil {
				t.Fatalf("RunScorecards: %v", err)
			}
			if diff := cmp.Diff([]Scorecard{sc}, scs); diff != "" {
				t.Errorf("RunScorecards (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLedger_RunActivitiesOrder(t *testing.T) {
	for name, l := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var want []string
			for i := range 5 {
				id := fmt.Sprintf("00U%d", i)
				want = append(want, id)
				if err := l.RecordActivity(Activity{RunID: "r", OppID: "o", Signature: fmt.Sprintf("s%d", 5-i), ActivityID: id, Type: TypeEmail, CreatedAt: created}); err != nil {
					t.Fatal(err)
				}
			}
			_ = l.RecordActivity(Activity{RunID: "other", OppID: "o", Signature: "x", ActivityID: "00UX", Type: TypeEmail, CreatedAt: created})
			acts, err := l.RunActivities("r")
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, a := range acts {
				got = append(got, a.ActivityID)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("order (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLedger_ConcurrentWriters(t *testing.T) {
	for name, l := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for w := range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := range 20 {
						// Half the keys collide across workers.
						sig := fmt.Sprintf("sig-%d", i)
						if i%2 == 1 {
							sig = fmt.Sprintf("sig-%d-w%d", i, w)
						}
						a := Activity{RunID: "run", OppID: "OPP", Signature: sig, ActivityID: "id", Type: TypeMeeting, CreatedAt: created}
						if err := l.RecordActivity(a); err != nil {
							t.Errorf("RecordActivity: %v", err)
						}
						if _, err := l.HasActivity("run", "OPP", sig); err != nil {
							t.Errorf("HasActivity: %v", err)
						}
					}
				}()
			}
			wg.Wait()
			c, err := l.Counts("run")
			if err != nil {
				t.Fatal(err)
			}
			// 10 shared even keys + 10 odd keys per worker.
			if want := 10 + 8*10; c.Activities != want {
				t.Errorf("activities = %d, want %d", c.Activities, want)
			}
		})
	}
}

func TestSqlLedger_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.sqlite")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l.RecordOpportunity("run-1", "OPP-1", created); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	l, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l.Close()
	if ok, _ := l.HasOpportunity("run-1", "OPP-1"); !ok {
		t.Error("opportunity lost across reopen")
	}
}

func TestSqlLedger_Layout(t *testing.T) {
	l := openSQL(t)
	want := map[string][]string{
		"opportunities":     {"run_id", "opp_id", "selected_at"},
		"activities":        {"run_id", "opp_id", "signature", "activity_id", "activity_type", "created_at"},
		"scorecards":        {"run_id", "opp_id", "scorecard_id", "template", "created_at"},
		"scorecard_answers": {"run_id", "scorecard_id", "question_id", "confidence", "created_at"},
	}
	wantPK := map[string][]string{
		"opportunities":     {"run_id", "opp_id"},
		"activities":        {"run_id", "opp_id", "signature"},
		"scorecards":        {"run_id", "opp_id", "template"},
		"scorecard_answers": {"run_id", "scorecard_id", "question_id"},
	}
	for table, cols := range want {
		rows, err := l.db.Query("SELECT name, pk FROM pragma_table_info(?) ORDER BY cid", table)
		if err != nil {
			t.Fatalf("table_info %s: %v", table, err)
		}
		var got []string
		pk := map[int]string{}
		for rows.Next() {
			var name string
			var pos int
			if err := rows.Scan(&name, &pos); err != nil {
				t.Fatal(err)
			}
			got = append(got, name)
			if pos > 0 {
				pk[pos] = name
			}
		}
		rows.Close()
		if diff := cmp.Diff(cols, got); diff != "" {
			t.Errorf("%s columns (-want +got):\n%s", table, diff)
		}
		var gotPK []string
		for i := 1; i <= len(pk); i++ {
			gotPK = append(gotPK, pk[i])
		}
		if diff := cmp.Diff(wantPK[table], gotPK); diff != "" {
			t.Errorf("%s primary key (-want +got):\n%s", table, diff)
		}
	}
}

func TestSqlLedger_DriverErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	l := newSqlLedger(db)
	boom := errors.New("disk I/O error")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM opportunities")).
		WithArgs("run-1", "OPP-1").
		WillReturnError(boom)
	if _, err := l.HasOpportunity("run-1", "OPP-1"); !errors.Is(err, boom) {
		t.Errorf("HasOpportunity err = %v, want wrapped driver error", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM activities")).
		WithArgs("run-1", "OPP-1", "sig").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	if ok, err := l.HasActivity("run-1", "OPP-1", "sig"); ok || err != nil {
		t.Errorf("HasActivity on empty result = %v, %v", ok, err)
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT OR IGNORE INTO activities")).
		WithArgs("run-1", "OPP-1", "sig", "00U1", TypeMeeting, "2025-03-10T12:00:00Z").
		WillReturnError(boom)
	err = l.RecordActivity(Activity{RunID: "run-1", OppID: "OPP-1", Signature: "sig", ActivityID: "00U1", Type: TypeMeeting, CreatedAt: created})
	if !errors.Is(err, boom) {
		t.Errorf("RecordActivity err = %v, want wrapped driver error", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT opp_id, signature")).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"opp_id", "signature", "activity_id", "activity_type", "created_at"}).
			AddRow("OPP-1", "sig", "00U1", TypeMeeting, "2025-03-10T12:00:00Z").
			RowError(0, boom))
	if _, err := l.RunActivities("run-1"); !errors.Is(err, boom) {
		t.Errorf("RunActivities err = %v, want row error", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
