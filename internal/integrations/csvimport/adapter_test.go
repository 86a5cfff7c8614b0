package csvimport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"routeplanner/internal/integrations"
	"routeplanner/internal/store"
)

func TestReadVehicles(t *testing.T) {
	vs, err := ReadVehicles(strings.NewReader("ID,Name,Latitude,Longitude,Capacity\nvan-1,North,1.5,2.5,4\nvan-2,,,,\n"))
	require.NoError(t, err)
	require.Len(t, vs, 2)
	require.Equal(t, "van-1", vs[0].ID)
	require.Equal(t, 1.5, vs[0].StartLocation.Lat)
	require.Equal(t, 2.5, vs[0].StartLocation.Lon)
	require.Equal(t, 4, *vs[0].Capacity)
	require.Nil(t, vs[1].StartLocation)
	require.Nil(t, vs[1].Capacity)
}

func TestReadJobsGroupsByAccount(t *testing.T) {
	in := "id,name,lat,lng,demand,kind,account\n" +
		"j1,Main St,1,1,,delivery,acme\n" +
		"j2,Oak Ave,2,2,3,,\n" +
		"j3,Elm,3,3,1,pickup,acme\n"
	groups, err := ReadJobs(strings.NewReader(in), "default")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Equal(t, "acme", groups[0].Account)
	require.Len(t, groups[0].Jobs, 2)
	require.Equal(t, "delivery", groups[0].Jobs[0].Kind)
	require.Equal(t, "j3", groups[0].Jobs[1].ID)
	require.Equal(t, "default", groups[1].Account)
	require.Equal(t, 3, *groups[1].Jobs[0].Demand)
}

func TestReadErrors(t *testing.T) {
	cases := map[string]string{
		"no header":  "",
		"no id":      "name,lat\nx,1\n",
		"empty id":   "id,lat,lon\n,1,1\n",
		"bad lat":    "id,lat,lon\nj1,north,1\n",
		"bad demand": "id,demand\nj1,lots\n",
		"no account": "id\nj1\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadJobs(strings.NewReader(in), "")
			require.Error(t, err)
		})
	}
	_, err := ReadJobs(strings.NewReader("id,lat,lon\nj1,1,1\nj2,x,1\n"), "a")
	require.ErrorContains(t, err, "line 3")
}

func TestImportIntoStore(t *testing.T) {
	dir := t.TempDir()
	vp := filepath.Join(dir, "vehicles.csv")
	jp := filepath.Join(dir, "jobs.csv")
	require.NoError(t, os.WriteFile(vp, []byte("id,lat,lon\nvan-1,0,0\n"), 0o600))
	require.NoError(t, os.WriteFile(jp, []byte("id,lat,lon,account\nj1,1,0,acme\nj2,2,0,acme\n"), 0o600))

	ctx := context.Background()
	s := store.NewMemory()
	res, err := integrations.Import(ctx, s, "t1", Adapter{VehiclesPath: vp, JobsPath: jp})
	require.NoError(t, err)
	require.Equal(t, 1, res.Vehicles)
	require.Equal(t, 2, res.Jobs["acme"])

	jobs, err := s.ListJobs(ctx, "t1", "acme")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, store.DefaultJobDemand, jobs[0].Demand)
}
