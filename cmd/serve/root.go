package serve

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/dTable/cmd/util"
	"github.com/ValentinKolb/dTable/lib/db"
	"github.com/ValentinKolb/dTable/lib/db/engines/rowan"
	"github.com/ValentinKolb/dTable/lib/db/util"
	"github.com/ValentinKolb/dTable/lib/store"
	"github.com/ValentinKolb/dTable/lib/store/dstore"
	"github.com/VictoriaMetrics/metrics"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	log = logger.GetLogger("serve")

	serveCmdConfig = &cmdUtil.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a dTable node",
		Long:    `Start a dTable node with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DTABLE_<flag> (e.g. DTABLE_LOG_LEVEL=debug)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "shards"
	ServeCmd.PersistentFlags().String(key, "100", cmdUtil.WrapString("Comma-separated list of raft shard IDs to serve. Every shard hosts one replicated table store"))

	key = "tables"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated list of tables to provision on startup. Format: NAME=attr1;attr2;... (e.g. 'user=name;mail,order=item;qty'). Provisioning is idempotent and can be repeated on every node"))

	key = "rtt-millisecond"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. Other raft configuration parameters (ElectionRTT, HeartbeatRTT) are derived from this value"))

	key = "snapshot-entries"
	ServeCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("SnapshotEntries defines how often the state machine should be snapshotted automatically. It is defined in terms of the number of applied Raft log entries. SnapshotEntries can be set to 0 to disable such automatic snapshotting (not recommended)"))

	key = "compaction-overhead"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("CompactionOverhead defines the number of snapshots that should be retained in the system. Recommended value is about 1/2 of SnapshotEntries"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("DataDir is the directory used for storing the raft log and snapshots"))

	key = "replica-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("ReplicaID is the unique identifier for this NodeHost instance (e.g. 'node-1')"))

	key = "cluster-members"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("ClusterMembers is a comma-separated list of NodeHost addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for replicated store operations"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the metrics endpoint will listen (prometheus text format under /metrics)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse shards
	serveCmdConfig.Shards = nil
	for _, shardConfig := range strings.Split(viper.GetString("shards"), ",") {
		shardID, err := strconv.ParseUint(strings.TrimSpace(shardConfig), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid shard ID %s: %v", shardConfig, err)
		}
		serveCmdConfig.Shards = append(serveCmdConfig.Shards, shardID)
	}

	// parse tables
	serveCmdConfig.Tables = map[string][]string{}
	if tablesConfig := viper.GetString("tables"); tablesConfig != "" {
		for _, tableConfig := range strings.Split(tablesConfig, ",") {
			parts := strings.Split(tableConfig, "=")
			if len(parts) != 2 {
				return fmt.Errorf("invalid table format: %s (expected NAME=attr1;attr2;...)", tableConfig)
			}
			name := strings.TrimSpace(parts[0])
			attrs := strings.Split(parts[1], ";")
			for i := range attrs {
				attrs[i] = strings.TrimSpace(attrs[i])
			}
			serveCmdConfig.Tables[name] = attrs
		}
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	serveCmdConfig.SnapshotEntries = viper.GetUint64("snapshot-entries")
	serveCmdConfig.CompactionOverhead = viper.GetUint64("compaction-overhead")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	// parse replica id
	if id := viper.GetString("replica-id"); id != "" {
		serveCmdConfig.ReplicaID = uint64(util.HashString(id, 0))
	} else {
		return fmt.Errorf("ReplicaID is required")
	}

	// parse cluster members
	if clusterMembers := viper.GetString("cluster-members"); clusterMembers != "" {
		serveCmdConfig.ClusterMembers = make(map[uint64]string)
		for _, member := range strings.Split(clusterMembers, ",") {
			parts := strings.Split(member, "=")
			if len(parts) != 2 {
				return fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
			}
			idHash := util.HashString(parts[0], 0)
			serveCmdConfig.ClusterMembers[uint64(idHash)] = parts[1]
		}
	} else {
		return fmt.Errorf("ClusterMembers is required")
	}

	// test if the replica id is in the cluster members
	if _, ok := serveCmdConfig.ClusterMembers[serveCmdConfig.ReplicaID]; !ok {
		return fmt.Errorf("no address found for replica ID %d in cluster members", serveCmdConfig.ReplicaID)
	}

	return nil
}

// run starts the dTable node
func run(_ *cobra.Command, _ []string) error {
	// Init loggers
	cmdUtil.InitLoggers(*serveCmdConfig)

	log.Infof("Starting dTable node")
	log.Infof(serveCmdConfig.String())

	// Function to create a new engine instance
	dbFactory := func() db.TableDB { return rowan.NewRowanDB(nil) }

	// Create the Dragonboat NodeHost
	nodeHost, err := dragonboat.NewNodeHost(serveCmdConfig.ToNodeHostConfig())
	if err != nil {
		return fmt.Errorf("failed to create node host: %w", err)
	}
	defer nodeHost.Close()

	// Configure the timeout for the replicated stores
	timeout := time.Duration(serveCmdConfig.TimeoutSecond) * time.Second

	// Start raft and create a replicated store for every shard
	stores := make(map[uint64]store.ITableStore, len(serveCmdConfig.Shards))
	for _, shardID := range serveCmdConfig.Shards {
		if err := nodeHost.StartConcurrentReplica(
			serveCmdConfig.ClusterMembers,
			false,
			dstore.CreateStateMachineFactory(dbFactory),
			serveCmdConfig.ToDragonboatConfig(shardID),
		); err != nil {
			return fmt.Errorf("failed to start shard %d: %w", shardID, err)
		}
		stores[shardID] = dstore.NewDistributedStore(nodeHost, shardID, timeout)
		log.Infof("created replicated table store for shard %d", shardID)
	}

	// Provision the configured tables on every shard. The shard needs a
	// leader before proposals go through, so this retries until the cluster
	// settles.
	for shardID, s := range stores {
		prov := s.(store.ITableProvisioner)
		for name, attrs := range serveCmdConfig.Tables {
			if err := provisionTable(prov, name, attrs, timeout); err != nil {
				return fmt.Errorf("failed to provision table %s on shard %d: %w", name, shardID, err)
			}
			log.Infof("provisioned table %s on shard %d", name, shardID)
		}
	}

	// Start the metrics endpoint
	go func() {
		http.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			metrics.WritePrometheus(w, true)
		})
		log.Infof("metrics endpoint listening on %s", serveCmdConfig.MetricsEndpoint)
		if err := http.ListenAndServe(serveCmdConfig.MetricsEndpoint, nil); err != nil {
			log.Errorf("metrics endpoint failed: %v", err)
		}
	}()

	log.Infof("dTable setup completed successfully")

	// Block until the process is asked to stop
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Infof("shutting down")

	return nil
}

// provisionTable retries table creation until the shard has elected a leader
// or the deadline passes.
func provisionTable(prov store.ITableProvisioner, name string, attrs []string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout * 6)
	for {
		err := prov.CreateTable(name, attrs)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// initConfig reads in the config file and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dtable")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
